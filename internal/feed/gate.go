package feed

import "sync"

// Gate serializes callback delivery and stops it on Close. Once Close
// returns, no callback is running and none will start.
type Gate struct {
	mu       sync.Mutex
	closed   bool
	onUpdate UpdateFunc
	onError  ErrorFunc
}

// NewGate wraps the subscriber callbacks. Nil callbacks are skipped.
func NewGate(onUpdate UpdateFunc, onError ErrorFunc) *Gate {
	return &Gate{onUpdate: onUpdate, onError: onError}
}

// Update delivers u unless the gate is closed, reporting whether it did.
func (g *Gate) Update(u Update) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	if g.onUpdate != nil {
		g.onUpdate(u)
	}
	return true
}

// Error delivers err unless the gate is closed, reporting whether it did.
func (g *Gate) Error(err error) bool {
	if err == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	if g.onError != nil {
		g.onError(err)
	}
	return true
}

// Close stops delivery, waiting for an in-flight callback to return.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
