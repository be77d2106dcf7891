// Package docstore polls a document-store REST API for match documents.
package docstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/timeutil"
)

// FeedConfig configures a polling feed over one collection.
type FeedConfig struct {
	Collection string
	Fetcher    Fetcher
	Interval   time.Duration
	NewTicker  timeutil.TickerFunc
	Now        func() time.Time
	Logger     *slog.Logger
}

// Feed polls one collection on an interval and pushes the watched match.
type Feed struct {
	collection string
	fetcher    Fetcher
	interval   time.Duration
	newTicker  timeutil.TickerFunc
	now        func() time.Time
	logger     *slog.Logger
}

// NewFeed constructs a polling Feed with sane defaults.
func NewFeed(cfg FeedConfig) *Feed {
	f := &Feed{
		collection: cfg.Collection,
		fetcher:    cfg.Fetcher,
		interval:   cfg.Interval,
		newTicker:  cfg.NewTicker,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if f.interval <= 0 {
		f.interval = defaultPollInterval
	}
	if f.newTicker == nil {
		f.newTicker = timeutil.NewTicker
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

func (f *Feed) Name() string { return f.collection }

// Subscribe polls immediately and then once per interval until unsubscribed.
func (f *Feed) Subscribe(ctx context.Context, filter feed.Filter, onUpdate feed.UpdateFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	if f.fetcher == nil {
		return nil, feed.Wrap(f.collection, ErrUnavailable)
	}
	return feed.Start(ctx, onUpdate, onError, func(ctx context.Context, gate *feed.Gate) {
		ticker := f.newTicker(f.interval)
		defer ticker.Stop()

		logging.Info(f.logger, "docstore poll started",
			slog.String(logging.FieldSource, f.collection),
			slog.Int64(logging.FieldDurationMS, f.interval.Milliseconds()),
		)
		f.pollOnce(ctx, filter, gate)
		for {
			select {
			case <-ctx.Done():
				logging.Info(f.logger, "docstore poll stopped", slog.String(logging.FieldSource, f.collection))
				return
			case <-ticker.C():
				f.pollOnce(ctx, filter, gate)
			}
		}
	}), nil
}

func (f *Feed) pollOnce(ctx context.Context, filter feed.Filter, gate *feed.Gate) {
	snaps, err := f.fetcher.FetchMatches(ctx, f.collection, filter)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		gate.Error(feed.Wrap(f.collection, err))
		return
	}

	if snap, ok := latestMatching(snaps, filter); ok {
		gate.Update(feed.SnapshotUpdate(f.collection, snap, f.now()))
		return
	}
	gate.Update(feed.EmptyUpdate(f.collection, f.now()))
}

// latestMatching returns the last document in the page that belongs to the
// watched pair.
func latestMatching(snaps []match.Snapshot, filter feed.Filter) (match.Snapshot, bool) {
	for i := len(snaps) - 1; i >= 0; i-- {
		if filter.Matches(snaps[i]) {
			return snaps[i], true
		}
	}
	return match.Snapshot{}, false
}
