package docstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
)

// retryingFetcher wraps a Fetcher with exponential backoff.
type retryingFetcher struct {
	inner      Fetcher
	logger     *slog.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewRetryingFetcher retries transient failures up to maxRetries times. If
// maxRetries/base are <= 0, defaults are used. Rate-limited responses wait
// at least their Retry-After; 4xx responses are not retried.
func NewRetryingFetcher(inner Fetcher, logger *slog.Logger, maxRetries int, base time.Duration) Fetcher {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if base <= 0 {
		base = defaultBaseBackoff
	}
	return &retryingFetcher{
		inner:      inner,
		logger:     logger,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = base
			b.MaxInterval = defaultMaxBackoff
			b.MaxElapsedTime = 0
			return b
		},
	}
}

func (r *retryingFetcher) FetchMatches(ctx context.Context, collection string, filter feed.Filter) ([]match.Snapshot, error) {
	if r == nil || r.inner == nil {
		return nil, ErrUnavailable
	}

	hinted := &retryAfterBackOff{BackOff: r.newBackOff()}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, r.maxRetries), ctx)

	var (
		out     []match.Snapshot
		attempt int
	)
	op := func() error {
		attempt++
		snaps, err := r.inner.FetchMatches(ctx, collection, filter)
		if err == nil {
			out = snaps
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if rl, ok := AsRateLimitError(err); ok {
			hinted.hint = rl.RetryAfter
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		logging.Warn(logging.FromContext(ctx, r.logger), "docstore fetch retry",
			slog.String(logging.FieldSource, collection),
			slog.Int("attempt", attempt),
			slog.Int64("delay_ms", delay.Milliseconds()),
			slog.Any("err", err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		logging.Warn(logging.FromContext(ctx, r.logger), "docstore fetch failed",
			slog.String(logging.FieldSource, collection),
			slog.Int("attempts", attempt),
			slog.Any("err", err),
		)
		return nil, err
	}
	return out, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := AsRateLimitError(err); ok {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// retryAfterBackOff stretches the next delay to a server-provided hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}
