package feed

import (
	"context"
	"strings"
	"sync"
)

type merged struct {
	feeds []Feed
}

// Merge combines several feeds into one. Deliveries from all sources are
// serialized in arrival order, so the last live update to arrive wins. An
// empty update is dropped while another source still reports the match
// live, so a collection that never carries the watched pair cannot clear
// the board.
func Merge(feeds ...Feed) Feed {
	if len(feeds) == 1 {
		return feeds[0]
	}
	return &merged{feeds: feeds}
}

func (m *merged) Name() string {
	names := make([]string, 0, len(m.feeds))
	for _, f := range m.feeds {
		names = append(names, f.Name())
	}
	return strings.Join(names, "+")
}

func (m *merged) Subscribe(ctx context.Context, filter Filter, onUpdate UpdateFunc, onError ErrorFunc) (Unsubscribe, error) {
	if len(m.feeds) == 0 {
		return nil, ErrClosed
	}
	gate := NewGate(onUpdate, onError)
	holders := newLiveHolders(len(m.feeds))
	unsubs := make([]Unsubscribe, 0, len(m.feeds))
	var once sync.Once
	closeAll := func() {
		once.Do(func() {
			gate.Close()
			for _, u := range unsubs {
				u()
			}
		})
	}

	for i, f := range m.feeds {
		unsub, err := f.Subscribe(ctx, filter,
			func(u Update) { holders.deliver(i, u, gate) },
			func(err error) { gate.Error(Wrap(f.Name(), err)) },
		)
		if err != nil {
			closeAll()
			return nil, Wrap(f.Name(), err)
		}
		unsubs = append(unsubs, unsub)
	}
	return closeAll, nil
}

// liveHolders remembers which sources last reported the match live.
type liveHolders struct {
	mu   sync.Mutex
	live []bool
}

func newLiveHolders(n int) *liveHolders {
	return &liveHolders{live: make([]bool, n)}
}

// deliver records u for source i and forwards it unless it is an empty
// update while another source is live. The lock is held across delivery
// so the recorded state and delivery order agree.
func (h *liveHolders) deliver(i int, u Update, gate *Gate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.live[i] = !u.Empty()
	if u.Empty() {
		for j, live := range h.live {
			if j != i && live {
				return
			}
		}
	}
	gate.Update(u)
}
