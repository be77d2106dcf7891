package store

import (
	"sync"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
)

// MemoryStore keeps a thread-safe copy of the latest scoreboard view.
type MemoryStore struct {
	mu   sync.RWMutex
	view engine.View
	set  bool
}

// NewMemoryStore constructs a store holding the LOADING view.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		view: engine.View{
			State:            engine.StateLoading,
			Snapshot:         match.EmptyMatch(),
			CurrentGame:      match.GameWD,
			CurrentGameLabel: match.GameWD.DisplayName(),
			Highlights:       []engine.Highlight{},
		},
	}
}

// View returns a copy of the stored view.
func (s *MemoryStore) View() engine.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneView(s.view)
}

// HasView reports whether SetView has been called.
func (s *MemoryStore) HasView() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// SetView replaces the stored view. Views older than the stored one are
// ignored.
func (s *MemoryStore) SetView(v engine.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && v.Version < s.view.Version {
		return
	}
	s.view = cloneView(v)
	s.set = true
}

func cloneView(v engine.View) engine.View {
	out := v
	out.Highlights = append([]engine.Highlight{}, v.Highlights...)
	if v.Countdown != nil {
		c := *v.Countdown
		out.Countdown = &c
	}
	if v.Snapshot.History != nil {
		out.Snapshot.History = append([]match.HistoryEntry(nil), v.Snapshot.History...)
	}
	return out
}
