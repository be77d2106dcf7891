package feed

import (
	"context"
	"sync"
)

// Start runs loop on its own goroutine with the callbacks behind a Gate and
// returns the matching Unsubscribe. Unsubscribe closes the gate, cancels
// the loop context and waits for loop to return.
func Start(ctx context.Context, onUpdate UpdateFunc, onError ErrorFunc, loop func(ctx context.Context, gate *Gate)) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	gate := NewGate(onUpdate, onError)
	done := make(chan struct{})

	go func() {
		defer close(done)
		loop(ctx, gate)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			gate.Close()
			cancel()
			<-done
		})
	}
}
