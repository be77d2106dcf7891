package docstore

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
)

// rateLimitedFetcher enforces a minimum interval between upstream calls.
type rateLimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimitedFetcher returns a Fetcher that waits for the limiter before
// each call. A non-positive interval defaults to one call per second.
func NewRateLimitedFetcher(next Fetcher, minInterval time.Duration, logger *slog.Logger) Fetcher {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &rateLimitedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		logger:  logger,
	}
}

func (p *rateLimitedFetcher) FetchMatches(ctx context.Context, collection string, filter feed.Filter) ([]match.Snapshot, error) {
	if p == nil || p.next == nil {
		return nil, ErrUnavailable
	}
	if err := p.limiter.Wait(ctx); err != nil {
		logging.Warn(p.logger, "rate-limited fetch canceled", slog.String(logging.FieldSource, collection))
		return nil, err
	}
	return p.next.FetchMatches(ctx, collection, filter)
}
