package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/timeutil"
)

const (
	defaultTickInterval = time.Second
	readyFailureLimit   = 3
)

// ErrStopped is returned by RequestReset when the runner is not running.
var ErrStopped = errors.New("engine: runner stopped")

// ViewSink stores the latest view for readers.
type ViewSink interface {
	SetView(View)
}

// Publisher pushes each new view to live subscribers.
type Publisher interface {
	Publish(View)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Engine       *Engine
	Feed         feed.Feed
	Filter       feed.Filter
	Sink         ViewSink
	Publisher    Publisher
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
	TickInterval time.Duration
	NewTicker    timeutil.TickerFunc
}

// Status describes the recent health of the feed subscription.
type Status struct {
	ConsecutiveFailures int
	LastError           string
	LastUpdate          time.Time
	Subscribed          bool
}

// IsReady reports whether the runner is subscribed, has applied an update
// and is not failing repeatedly.
func (s Status) IsReady() bool {
	if !s.Subscribed || s.LastUpdate.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < readyFailureLimit
}

// Runner owns the goroutine that applies feed updates, feed errors, clock
// ticks and reset requests to the Engine one at a time.
type Runner struct {
	engine    *Engine
	feed      feed.Feed
	filter    feed.Filter
	sink      ViewSink
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Recorder
	interval  time.Duration
	newTicker timeutil.TickerFunc

	updates chan feed.Update
	errs    chan error
	resets  chan chan struct{}

	quit     chan struct{}
	halt     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	published    uint64
	hasPublished bool

	statusMu sync.RWMutex
	status   Status
}

// NewRunner constructs a Runner with defaults for missing fields.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		engine:    cfg.Engine,
		feed:      cfg.Feed,
		filter:    cfg.Filter,
		sink:      cfg.Sink,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		interval:  cfg.TickInterval,
		newTicker: cfg.NewTicker,
		updates:   make(chan feed.Update),
		errs:      make(chan error),
		resets:    make(chan chan struct{}),
		quit:      make(chan struct{}),
		halt:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if r.engine == nil {
		r.engine = New(Config{Logger: cfg.Logger})
	}
	if r.interval <= 0 {
		r.interval = defaultTickInterval
	}
	if r.newTicker == nil {
		r.newTicker = timeutil.NewTicker
	}
	r.filter.LiveOnly = true
	return r
}

// Start subscribes to the feed and runs the loop until ctx is cancelled or
// Stop is called. Calling Start again is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.startMu.Lock()
	if r.started {
		r.startMu.Unlock()
		return
	}
	r.started = true
	r.startMu.Unlock()

	ticker := r.newTicker(r.interval)
	go r.loop(ctx, ticker)
}

// Stop halts the loop and waits for the feed to be unsubscribed.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.quit) })

	r.startMu.Lock()
	started := r.started
	r.startMu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestReset asks the loop to reset the engine and waits until it has.
func (r *Runner) RequestReset(ctx context.Context) error {
	r.startMu.Lock()
	started := r.started
	r.startMu.Unlock()
	if !started {
		return ErrStopped
	}

	ack := make(chan struct{})
	select {
	case r.resets <- ack:
	case <-r.halt:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-r.halt:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the subscription health.
func (r *Runner) Status() Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

func (r *Runner) loop(ctx context.Context, ticker timeutil.Ticker) {
	var unsub feed.Unsubscribe
	defer func() {
		ticker.Stop()
		close(r.halt)
		if unsub != nil {
			unsub()
		}
		r.setSubscribed(false)
		logging.Info(r.logger, "runner stopped")
		close(r.done)
	}()

	logging.Info(r.logger, "runner started",
		slog.String(logging.FieldEventID, r.filter.EventID),
		slog.String(logging.FieldCourtID, r.filter.CourtID),
		slog.Int64(logging.FieldDurationMS, r.interval.Milliseconds()),
	)
	r.publish()
	unsub = r.subscribe(ctx)

	var lastTick time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.quit:
			return
		case u := <-r.updates:
			r.applyUpdate(u)
		case err := <-r.errs:
			r.applyError(err)
		case ack := <-r.resets:
			r.applyReset("manual")
			close(ack)
		case at := <-ticker.C():
			elapsed := r.interval
			if !lastTick.IsZero() && at.After(lastTick) {
				elapsed = at.Sub(lastTick)
			}
			lastTick = at
			if unsub == nil {
				unsub = r.subscribe(ctx)
			}
			r.applyTick(elapsed)
		}
	}
}

func (r *Runner) subscribe(ctx context.Context) feed.Unsubscribe {
	if r.feed == nil {
		return nil
	}
	unsub, err := r.feed.Subscribe(ctx, r.filter, r.onUpdate, r.onError)
	if err != nil {
		err = feed.Wrap(r.feed.Name(), err)
		logging.Error(r.logger, "feed subscribe failed", err, slog.String(logging.FieldSource, r.feed.Name()))
		r.metrics.RecordFeedError(r.feed.Name())
		r.recordFailure(err)
		r.engine.SetFeedError(err)
		r.publish()
		return nil
	}
	r.setSubscribed(true)
	logging.Info(r.logger, "feed subscribed", slog.String(logging.FieldSource, r.feed.Name()))
	return unsub
}

func (r *Runner) onUpdate(u feed.Update) {
	select {
	case r.updates <- u:
	case <-r.halt:
	}
}

func (r *Runner) onError(err error) {
	select {
	case r.errs <- err:
	case <-r.halt:
	}
}

func (r *Runner) applyUpdate(u feed.Update) {
	start := time.Now()
	out := r.engine.OnSnapshotReceived(u)
	r.metrics.RecordFeedUpdate(u.Source, out.Empty)
	r.metrics.RecordEngineStep("update", len(out.Changes), time.Since(start))
	r.recordSuccess(u.ReceivedAt)

	logging.Debug(r.logger, "feed update applied",
		slog.String(logging.FieldSource, u.Source),
		slog.String(logging.FieldState, string(r.engine.State())),
		slog.Int(logging.FieldCount, len(out.Changes)),
	)
	r.publish()
}

func (r *Runner) applyError(err error) {
	source := feed.SourceOf(err)
	logging.Error(r.logger, "feed error", err, slog.String(logging.FieldSource, source))
	r.metrics.RecordFeedError(source)
	r.recordFailure(err)
	r.engine.SetFeedError(err)
	r.publish()
}

func (r *Runner) applyTick(elapsed time.Duration) {
	start := time.Now()
	if r.engine.OnTick(elapsed) {
		r.metrics.RecordReset("countdown")
		logging.Info(r.logger, "countdown expired, board reset")
	}
	r.metrics.RecordEngineStep("tick", 0, time.Since(start))
	r.publish()
}

func (r *Runner) applyReset(reason string) {
	r.engine.Reset()
	r.metrics.RecordReset(reason)
	logging.Info(r.logger, "board reset", slog.String("reason", reason))
	r.publish()
}

// publish pushes the view when it changed since the last push.
func (r *Runner) publish() {
	v := r.engine.View()
	if r.hasPublished && v.Version == r.published {
		return
	}
	r.hasPublished = true
	r.published = v.Version
	if r.sink != nil {
		r.sink.SetView(v)
	}
	if r.publisher != nil {
		r.publisher.Publish(v)
	}
}

func (r *Runner) setSubscribed(v bool) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status.Subscribed = v
}

func (r *Runner) recordSuccess(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status.ConsecutiveFailures = 0
	r.status.LastError = ""
	r.status.LastUpdate = at
}

func (r *Runner) recordFailure(err error) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status.ConsecutiveFailures++
	if err != nil {
		r.status.LastError = err.Error()
	}
}
