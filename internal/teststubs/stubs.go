package teststubs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
)

// StubFeed is a test double for feed.Feed that forwards pushed values to the
// active subscriber.
type StubFeed struct {
	FeedName     string
	SubscribeErr error
	Subscribes   atomic.Int32
	Unsubscribes atomic.Int32

	mu       sync.Mutex
	gate     *feed.Gate
	filter   feed.Filter
	notify   chan struct{}
	notified bool
}

// Name returns FeedName or "stub".
func (s *StubFeed) Name() string {
	if s.FeedName == "" {
		return "stub"
	}
	return s.FeedName
}

// Subscribe records the filter and keeps the callbacks for Push and Fail.
func (s *StubFeed) Subscribe(ctx context.Context, filter feed.Filter, onUpdate feed.UpdateFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	_ = ctx
	s.Subscribes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SubscribeErr != nil {
		return nil, s.SubscribeErr
	}
	gate := feed.NewGate(onUpdate, onError)
	s.gate = gate
	s.filter = filter
	if s.notify != nil && !s.notified {
		s.notified = true
		close(s.notify)
	}
	return func() {
		if !gate.Closed() {
			s.Unsubscribes.Add(1)
		}
		gate.Close()
	}, nil
}

// Subscribed returns a channel closed once a subscription succeeds.
func (s *StubFeed) Subscribed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notify == nil {
		s.notify = make(chan struct{})
		if s.gate != nil {
			s.notified = true
			close(s.notify)
		}
	}
	return s.notify
}

// Filter returns the filter of the latest subscription.
func (s *StubFeed) Filter() feed.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetSubscribeErr changes the error returned by later Subscribe calls.
func (s *StubFeed) SetSubscribeErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SubscribeErr = err
}

// Push delivers snap as a live update. It reports false without a subscriber.
func (s *StubFeed) Push(snap match.Snapshot) bool {
	return s.deliver(feed.SnapshotUpdate(s.Name(), snap, time.Now()))
}

// PushEmpty delivers an empty update.
func (s *StubFeed) PushEmpty() bool {
	return s.deliver(feed.EmptyUpdate(s.Name(), time.Now()))
}

// Fail delivers err to the error callback.
func (s *StubFeed) Fail(err error) bool {
	gate := s.current()
	return gate != nil && gate.Error(feed.Wrap(s.Name(), err))
}

func (s *StubFeed) deliver(u feed.Update) bool {
	gate := s.current()
	return gate != nil && gate.Update(u)
}

func (s *StubFeed) current() *feed.Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}
