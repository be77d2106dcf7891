package docstore

import (
	"context"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
)

type instrumentedFetcher struct {
	next    Fetcher
	metrics *metrics.Recorder
}

// NewInstrumentedFetcher records every call's latency, outcome and rate-limit hits.
func NewInstrumentedFetcher(next Fetcher, recorder *metrics.Recorder) Fetcher {
	return &instrumentedFetcher{next: next, metrics: recorder}
}

func (f *instrumentedFetcher) FetchMatches(ctx context.Context, collection string, filter feed.Filter) ([]match.Snapshot, error) {
	start := time.Now()
	snaps, err := f.next.FetchMatches(ctx, collection, filter)
	f.metrics.RecordSourceAttempt(collection, time.Since(start), err)
	if rl, ok := AsRateLimitError(err); ok {
		f.metrics.RecordRateLimit(collection, rl.RetryAfter)
	}
	return snaps, err
}
