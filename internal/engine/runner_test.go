package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/metrics"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/teststubs"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/testutil"
)

var errTest = errors.New("upstream unavailable")

type recordingSink struct {
	mu    sync.Mutex
	views []View
}

func (s *recordingSink) SetView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
}

func (s *recordingSink) Publish(v View) { s.SetView(v) }

func (s *recordingSink) last() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return View{}, false
	}
	return s.views[len(s.views)-1], true
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

func (s *recordingSink) waitFor(t *testing.T, cond func(View) bool) View {
	t.Helper()
	var got View
	ok := testutil.Eventually(time.Second, func() bool {
		v, ok := s.last()
		got = v
		return ok && cond(v)
	})
	if !ok {
		t.Fatalf("condition not met, last view %+v", got)
	}
	return got
}

type runnerFixture struct {
	runner   *Runner
	feed     *teststubs.StubFeed
	ticker   *testutil.ManualTicker
	sink     *recordingSink
	recorder *metrics.Recorder
}

func startRunner(t *testing.T, stub *teststubs.StubFeed) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		feed:     stub,
		ticker:   testutil.NewManualTicker(),
		sink:     &recordingSink{},
		recorder: metrics.NewRecorder(),
	}
	f.runner = NewRunner(RunnerConfig{
		Engine:       New(Config{ResetAfter: 2 * time.Second}),
		Feed:         stub,
		Filter:       feedFilter(),
		Sink:         f.sink,
		Metrics:      f.recorder,
		TickInterval: time.Second,
		NewTicker:    f.ticker.Factory(),
	})
	f.runner.Start(context.Background())
	t.Cleanup(func() { _ = f.runner.Stop(context.Background()) })
	return f
}

func TestRunnerAppliesUpdatesAndPublishes(t *testing.T) {
	f := startRunner(t, &teststubs.StubFeed{FeedName: "mlpmatches"})
	<-f.feed.Subscribed()

	if !f.feed.Filter().LiveOnly || f.feed.Filter().CourtID != testutil.SampleCourtID {
		t.Fatalf("unexpected filter %+v", f.feed.Filter())
	}
	if f.ticker.Period() != time.Second {
		t.Fatalf("unexpected tick period %s", f.ticker.Period())
	}

	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 1, 0, match.WinnerNone)
	f.feed.Push(s)
	v := f.sink.waitFor(t, func(v View) bool { return v.State == StateLive })
	if v.LastSource != "mlpmatches" || len(v.Highlights) != 1 {
		t.Fatalf("unexpected view %+v", v)
	}

	status := f.runner.Status()
	if !status.IsReady() || status.ConsecutiveFailures != 0 {
		t.Fatalf("expected ready status, got %+v", status)
	}
	if snap := f.recorder.Snapshot("mlpmatches"); snap.Updates != 1 {
		t.Fatalf("expected one recorded update, got %+v", snap)
	}
}

func TestRunnerTicksDriveCountdownReset(t *testing.T) {
	f := startRunner(t, &teststubs.StubFeed{})
	<-f.feed.Subscribed()

	f.feed.Push(testutil.DecidedMatch())
	f.sink.waitFor(t, func(v View) bool { return v.State == StateIdleCountdown })

	base := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	if !f.ticker.Tick(base) {
		t.Fatalf("tick not consumed")
	}
	f.sink.waitFor(t, func(v View) bool { return v.Countdown != nil && v.Countdown.RemainingMs == 1000 })

	if !f.ticker.Tick(base.Add(time.Second)) {
		t.Fatalf("tick not consumed")
	}
	f.sink.waitFor(t, func(v View) bool { return v.State == StateLoading && v.Countdown == nil })

	if got := f.recorder.EngineSnapshot().Resets["countdown"]; got != 1 {
		t.Fatalf("expected one countdown reset, got %d", got)
	}
}

func TestRunnerSurfacesFeedErrors(t *testing.T) {
	f := startRunner(t, &teststubs.StubFeed{FeedName: "docs"})
	<-f.feed.Subscribed()

	f.feed.Fail(errTest)
	v := f.sink.waitFor(t, func(v View) bool { return v.FeedError != "" })
	if v.FeedError != "feed docs: upstream unavailable" {
		t.Fatalf("unexpected feed error %q", v.FeedError)
	}
	status := f.runner.Status()
	if status.ConsecutiveFailures != 1 || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
	if snap := f.recorder.Snapshot("docs"); snap.Errors != 1 {
		t.Fatalf("expected recorded feed error, got %+v", snap)
	}

	f.feed.Push(testutil.LiveMatch())
	f.sink.waitFor(t, func(v View) bool { return v.FeedError == "" && v.State == StateLive })
	if f.runner.Status().ConsecutiveFailures != 0 {
		t.Fatalf("expected failures cleared")
	}
}

func TestRunnerRetriesFailedSubscribeOnTick(t *testing.T) {
	stub := &teststubs.StubFeed{SubscribeErr: errTest}
	f := startRunner(t, stub)

	f.sink.waitFor(t, func(v View) bool { return v.FeedError != "" })
	if f.runner.Status().Subscribed {
		t.Fatalf("expected not subscribed")
	}

	stub.SetSubscribeErr(nil)
	if !f.ticker.Tick(time.Now()) {
		t.Fatalf("tick not consumed")
	}
	<-stub.Subscribed()
	if !testutil.Eventually(time.Second, func() bool { return f.runner.Status().Subscribed }) {
		t.Fatalf("expected subscription after retry")
	}
	if stub.Subscribes.Load() != 2 {
		t.Fatalf("expected two subscribe attempts, got %d", stub.Subscribes.Load())
	}
}

func TestRunnerRequestReset(t *testing.T) {
	f := startRunner(t, &teststubs.StubFeed{})
	<-f.feed.Subscribed()
	f.feed.Push(testutil.DecidedMatch())
	f.sink.waitFor(t, func(v View) bool { return v.MatchOver })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.runner.RequestReset(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := f.sink.last()
	if v.State != StateLoading || v.MatchOver {
		t.Fatalf("expected reset view after RequestReset returned, got %+v", v)
	}
	if got := f.recorder.EngineSnapshot().Resets["manual"]; got != 1 {
		t.Fatalf("expected manual reset recorded, got %d", got)
	}
}

func TestRunnerStopUnsubscribesAndIsIdempotent(t *testing.T) {
	f := startRunner(t, &teststubs.StubFeed{})
	<-f.feed.Subscribed()

	if err := f.runner.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if err := f.runner.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected second stop error: %v", err)
	}
	if f.feed.Unsubscribes.Load() != 1 {
		t.Fatalf("expected one unsubscribe, got %d", f.feed.Unsubscribes.Load())
	}
	if !f.ticker.Stopped() {
		t.Fatalf("expected ticker stopped")
	}
	if f.feed.Push(testutil.LiveMatch()) {
		t.Fatalf("expected no delivery after stop")
	}
	if err := f.runner.RequestReset(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if f.runner.Status().Subscribed {
		t.Fatalf("expected unsubscribed status")
	}
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	stub := &teststubs.StubFeed{}
	r := NewRunner(RunnerConfig{Feed: stub, NewTicker: testutil.NewManualTicker().Factory()})
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	r.Start(ctx)
	<-stub.Subscribed()

	cancel()
	if !testutil.Eventually(time.Second, func() bool { return stub.Unsubscribes.Load() == 1 }) {
		t.Fatalf("expected unsubscribe after context cancel")
	}
	if stub.Subscribes.Load() != 1 {
		t.Fatalf("expected Start to be idempotent, got %d subscribes", stub.Subscribes.Load())
	}
}

func TestRunnerStopBeforeStart(t *testing.T) {
	r := NewRunner(RunnerConfig{})
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.RequestReset(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestStatusIsReady(t *testing.T) {
	cases := []struct {
		name   string
		status Status
		want   bool
	}{
		{"zero", Status{}, false},
		{"subscribed without update", Status{Subscribed: true}, false},
		{"healthy", Status{Subscribed: true, LastUpdate: time.Now()}, true},
		{"failing", Status{Subscribed: true, LastUpdate: time.Now(), ConsecutiveFailures: 3}, false},
	}
	for _, tc := range cases {
		if got := tc.status.IsReady(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPublishSkipsUnchangedViews(t *testing.T) {
	sink := &recordingSink{}
	r := NewRunner(RunnerConfig{Sink: sink, Publisher: sink})
	r.publish()
	r.publish()
	if sink.count() != 2 {
		t.Fatalf("expected one view written to sink and publisher, got %d", sink.count())
	}
	r.engine.Reset()
	r.publish()
	if sink.count() != 4 {
		t.Fatalf("expected changed view published, got %d", sink.count())
	}
}

func feedFilter() feed.Filter {
	return feed.Filter{EventID: testutil.SampleEventID, CourtID: testutil.SampleCourtID}
}

func TestRunnerMergedCollectionsDoNotFlap(t *testing.T) {
	holder := &teststubs.StubFeed{FeedName: "mlpmatches"}
	missing := &teststubs.StubFeed{FeedName: "livematches"}
	sink := &recordingSink{}
	recorder := metrics.NewRecorder()
	runner := NewRunner(RunnerConfig{
		Engine:       New(Config{}),
		Feed:         feed.Merge(holder, missing),
		Filter:       feedFilter(),
		Sink:         sink,
		Metrics:      recorder,
		TickInterval: time.Second,
		NewTicker:    testutil.NewManualTicker().Factory(),
	})
	runner.Start(context.Background())
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })
	<-holder.Subscribed()
	<-missing.Subscribed()

	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 5, 3, match.WinnerNone)
	for i := 0; i < 3; i++ {
		holder.Push(s)
		missing.PushEmpty()
	}

	if !testutil.Eventually(time.Second, func() bool { return recorder.EngineSnapshot().Steps >= 3 }) {
		t.Fatalf("expected three applied updates, got %d", recorder.EngineSnapshot().Steps)
	}
	if got := recorder.EngineSnapshot().ChangeEvents; got != 2 {
		t.Fatalf("expected change events only for the first snapshot, got %d", got)
	}
	if snap := recorder.Snapshot("livematches"); snap.Updates != 0 {
		t.Fatalf("expected empties from livematches dropped, got %+v", snap)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	seenLive := false
	for _, v := range sink.views {
		if v.State == StateLive {
			seenLive = true
			continue
		}
		if seenLive {
			t.Fatalf("expected board to stay LIVE, saw %s", v.State)
		}
	}
	if !seenLive {
		t.Fatalf("expected a LIVE view")
	}
}
