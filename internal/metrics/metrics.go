package metrics

import (
	"sync"
	"time"
)

type sourceStats struct {
	updates         int
	empties         int
	errors          int
	calls           int
	callErrors      int
	rateLimitHits   int
	lastRetryAfter  time.Duration
	lastCallLatency time.Duration
}

type engineStats struct {
	steps        int
	changeEvents int
	resets       map[string]int
	streamConns  int
}

// Recorder captures lightweight, in-memory metrics about feed sources and
// the reconciliation engine, mirroring them to OpenTelemetry when set up.
type Recorder struct {
	mu     sync.Mutex
	stats  map[string]*sourceStats
	engine engineStats
	otel   *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats:  make(map[string]*sourceStats),
		engine: engineStats{resets: make(map[string]int)},
		otel:   otel,
	}
}

// RecordFeedUpdate counts a delivered update; empty marks a no-live-match report.
func (r *Recorder) RecordFeedUpdate(source string, empty bool) {
	if r == nil {
		return
	}
	r.withStats(source, func(s *sourceStats) {
		s.updates++
		if empty {
			s.empties++
		}
	})
	if r.otel != nil {
		r.otel.recordFeedUpdate(source, empty)
	}
}

// RecordFeedError counts a subscription-level failure reported by a source.
func (r *Recorder) RecordFeedError(source string) {
	if r == nil {
		return
	}
	r.withStats(source, func(s *sourceStats) { s.errors++ })
	if r.otel != nil {
		r.otel.recordFeedError(source)
	}
}

// RecordSourceAttempt increments counters for an upstream call and stores the last observed latency.
func (r *Recorder) RecordSourceAttempt(source string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.withStats(source, func(s *sourceStats) {
		s.calls++
		s.lastCallLatency = duration
		if err != nil {
			s.callErrors++
		}
	})
	if r.otel != nil {
		r.otel.recordSourceAttempt(source, duration, err)
	}
}

// RecordRateLimit tracks that an upstream response hit a rate limit and stores the last Retry-After.
func (r *Recorder) RecordRateLimit(source string, retryAfter time.Duration) {
	if r == nil {
		return
	}
	r.withStats(source, func(s *sourceStats) {
		s.rateLimitHits++
		if retryAfter > 0 {
			s.lastRetryAfter = retryAfter
		}
	})
	if r.otel != nil {
		r.otel.recordRateLimit(source, retryAfter)
	}
}

// RecordEngineStep tracks one reconciliation step and the change events it produced.
func (r *Recorder) RecordEngineStep(kind string, changes int, duration time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.engine.steps++
	r.engine.changeEvents += changes
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordEngineStep(kind, changes, duration)
	}
}

// RecordReset counts a full engine reset. Reason is "countdown" or "manual".
func (r *Recorder) RecordReset(reason string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.engine.resets[reason]++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordReset(reason)
	}
}

// RecordStreamClient adjusts the connected stream client count by delta.
func (r *Recorder) RecordStreamClient(delta int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.engine.streamConns += delta
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordStreamClient(delta)
	}
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// Snapshot returns a copy of the current stats for a feed source.
type Snapshot struct {
	Updates         int
	Empties         int
	Errors          int
	Calls           int
	CallErrors      int
	RateLimitHits   int
	LastRetryAfter  time.Duration
	LastCallLatency time.Duration
}

func (r *Recorder) Snapshot(source string) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[source]
	if !ok || stats == nil {
		return Snapshot{}
	}
	return Snapshot{
		Updates:         stats.updates,
		Empties:         stats.empties,
		Errors:          stats.errors,
		Calls:           stats.calls,
		CallErrors:      stats.callErrors,
		RateLimitHits:   stats.rateLimitHits,
		LastRetryAfter:  stats.lastRetryAfter,
		LastCallLatency: stats.lastCallLatency,
	}
}

// SourceCalls returns the total upstream attempts recorded for a source.
func (r *Recorder) SourceCalls(source string) int {
	return r.Snapshot(source).Calls
}

// RateLimitHits returns the number of rate limit events seen for a source.
func (r *Recorder) RateLimitHits(source string) int {
	return r.Snapshot(source).RateLimitHits
}

// EngineSnapshot is a copy of the engine counters.
type EngineSnapshot struct {
	Steps         int
	ChangeEvents  int
	Resets        map[string]int
	StreamClients int
}

func (r *Recorder) EngineSnapshot() EngineSnapshot {
	if r == nil {
		return EngineSnapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	resets := make(map[string]int, len(r.engine.resets))
	for k, v := range r.engine.resets {
		resets[k] = v
	}
	return EngineSnapshot{
		Steps:         r.engine.steps,
		ChangeEvents:  r.engine.changeEvents,
		Resets:        resets,
		StreamClients: r.engine.streamConns,
	}
}

func (r *Recorder) withStats(source string, fn func(*sourceStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[source]
	if !ok {
		stats = &sourceStats{}
		r.stats[source] = stats
	}
	fn(stats)
}
