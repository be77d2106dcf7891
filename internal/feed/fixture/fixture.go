// Package fixture replays a scripted match for local runs and demos.
package fixture

import (
	"context"
	"log/slog"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/timeutil"
)

const (
	defaultName     = "fixture"
	defaultInterval = 2 * time.Second
)

// Config controls the replay.
type Config struct {
	Name      string
	Script    Script
	Interval  time.Duration // overrides Script.Interval when positive
	NewTicker timeutil.TickerFunc
	Now       func() time.Time
	Logger    *slog.Logger
}

// Feed replays a Script, delivering the first frame on subscribe and one
// frame per tick after that.
type Feed struct {
	name      string
	steps     []step
	loop      bool
	interval  time.Duration
	newTicker timeutil.TickerFunc
	now       func() time.Time
	logger    *slog.Logger
}

// New renders the script up front so bad documents fail at startup.
func New(cfg Config) (*Feed, error) {
	steps, err := cfg.Script.render()
	if err != nil {
		return nil, err
	}
	f := &Feed{
		name:      cfg.Name,
		steps:     steps,
		loop:      cfg.Script.Loop,
		interval:  cfg.Interval,
		newTicker: cfg.NewTicker,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	if f.name == "" {
		f.name = defaultName
	}
	if f.interval <= 0 {
		f.interval = cfg.Script.Interval
	}
	if f.interval <= 0 {
		f.interval = defaultInterval
	}
	if f.newTicker == nil {
		f.newTicker = timeutil.NewTicker
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f, nil
}

func (f *Feed) Name() string { return f.name }

func (f *Feed) Subscribe(ctx context.Context, filter feed.Filter, onUpdate feed.UpdateFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	return feed.Start(ctx, onUpdate, onError, func(ctx context.Context, gate *feed.Gate) {
		ticker := f.newTicker(f.interval)
		defer ticker.Stop()

		logging.Info(f.logger, "fixture replay started",
			slog.String(logging.FieldSource, f.name),
			slog.Int(logging.FieldCount, len(f.steps)),
		)
		i := 0
		for {
			if i >= len(f.steps) {
				if !f.loop {
					logging.Info(f.logger, "fixture replay finished", slog.String(logging.FieldSource, f.name))
					<-ctx.Done()
					return
				}
				i = 0
			}
			gate.Update(f.updateFor(f.steps[i], filter))
			i++

			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
			}
		}
	}), nil
}

func (f *Feed) updateFor(s step, filter feed.Filter) feed.Update {
	at := f.now()
	if s.snapshot == nil {
		return feed.EmptyUpdate(f.name, at)
	}
	snap := *s.snapshot
	// Scripts without routing keys play on whatever pair is watched.
	if snap.EventID == "" && snap.CourtID == "" {
		snap.EventID = filter.EventID
		snap.CourtID = filter.CourtID
	}
	if !filter.Matches(snap) {
		return feed.EmptyUpdate(f.name, at)
	}
	return feed.SnapshotUpdate(f.name, snap, at)
}
