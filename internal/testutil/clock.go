package testutil

import (
	"sync"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/timeutil"
)

// NowAt returns a clock function fixed at the provided time.
func NowAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// MustParseRFC3339 parses an RFC3339 timestamp or panics; intended for tests.
func MustParseRFC3339(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		panic(err)
	}
	return t
}

// ManualTicker is a timeutil.Ticker driven by the test.
type ManualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
	period  time.Duration
}

// NewManualTicker returns an unbuffered ticker; Tick blocks until the
// consumer receives.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// Factory returns a timeutil.TickerFunc that hands out this ticker.
func (m *ManualTicker) Factory() timeutil.TickerFunc {
	return func(d time.Duration) timeutil.Ticker {
		m.mu.Lock()
		m.period = d
		m.mu.Unlock()
		return m
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Tick delivers at, giving up after a second so a stuck consumer fails the
// test instead of hanging it.
func (m *ManualTicker) Tick(at time.Time) bool {
	select {
	case m.ch <- at:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Stopped reports whether Stop was called.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Period returns the duration the ticker was created with.
func (m *ManualTicker) Period() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.period
}

// Eventually polls cond until it holds or the timeout passes.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
