package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/testutil"
)

var at = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(Config{ResetAfter: 3 * time.Second, HighlightDuration: time.Second, Now: testutil.NowAt(at)})
}

func live(s match.Snapshot) feed.Update {
	return feed.SnapshotUpdate("mlpmatches", s, at)
}

func empty() feed.Update {
	return feed.EmptyUpdate("mlpmatches", at)
}

func TestNewEngineStartsLoading(t *testing.T) {
	e := newTestEngine()
	v := e.View()
	if v.State != StateLoading || v.CurrentGame != match.GameWD || v.MatchOver || v.Countdown != nil {
		t.Fatalf("unexpected initial view %+v", v)
	}
	if len(v.Highlights) != 0 || v.Highlights == nil {
		t.Fatalf("expected empty non-nil highlights, got %v", v.Highlights)
	}
}

func TestRoundTripReturnsToLoading(t *testing.T) {
	e := newTestEngine()
	initial := e.View()

	e.OnSnapshotReceived(feed.SnapshotUpdate("mlpmatches", match.EmptyMatch(), at))
	if e.State() != StateLoading {
		t.Fatalf("expected empty default snapshot to keep LOADING, got %s", e.State())
	}

	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 4, 2, match.WinnerNone)
	e.OnSnapshotReceived(live(s))
	if e.State() != StateLive {
		t.Fatalf("expected LIVE, got %s", e.State())
	}

	out := e.OnSnapshotReceived(empty())
	if !out.Empty {
		t.Fatalf("expected empty outcome")
	}
	v := e.View()
	if v.State != initial.State || v.Snapshot.Key() != initial.Snapshot.Key() || v.CurrentGame != match.GameWD {
		t.Fatalf("expected initial state after round trip, got %+v", v)
	}
	if v.Snapshot.Game(match.GameWD) != match.EmptyGame() || len(v.Highlights) != 0 {
		t.Fatalf("expected cleared snapshot and highlights, got %+v", v)
	}
}

func TestLiveUpdateSelectsGameAndHighlights(t *testing.T) {
	e := newTestEngine()
	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 11, 9, match.WinnerTeam1)
	e.OnSnapshotReceived(live(s))

	next := testutil.WithScore(s, match.GameMD, 1, 0, match.WinnerNone)
	out := e.OnSnapshotReceived(live(next))
	if len(out.Changes) != 1 || out.Changes[0].Side != 1 || out.Changes[0].PreviousScore != 0 {
		t.Fatalf("unexpected changes %+v", out.Changes)
	}

	v := e.View()
	if v.CurrentGame != match.GameMD || v.CurrentGameLabel != "Men's Doubles" || v.State != StateLive {
		t.Fatalf("unexpected view %+v", v)
	}
	h, ok := v.Highlight(1)
	if !ok || h.RemainingMs != 1000 || h.Event.Score != 1 {
		t.Fatalf("unexpected highlight %+v ok=%v", h, ok)
	}
	if _, ok := v.Highlight(2); ok {
		t.Fatalf("expected no side 2 highlight")
	}
	if v.CurrentRecord().Team1Score != 1 {
		t.Fatalf("unexpected current record %+v", v.CurrentRecord())
	}
}

func TestDuplicateUpdateEmitsNothing(t *testing.T) {
	e := newTestEngine()
	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 3, 2, match.WinnerNone)
	e.OnSnapshotReceived(live(s))
	e.OnTick(2 * time.Second)

	out := e.OnSnapshotReceived(live(s))
	if len(out.Changes) != 0 {
		t.Fatalf("expected duplicate to emit nothing, got %+v", out.Changes)
	}
	if len(e.View().Highlights) != 0 {
		t.Fatalf("expected no highlights after duplicate")
	}
}

func TestNewEventReplacesSideHighlight(t *testing.T) {
	e := newTestEngine()
	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 1, 0, match.WinnerNone)
	e.OnSnapshotReceived(live(s))
	e.OnTick(600 * time.Millisecond)

	s = testutil.WithScore(s, match.GameWD, 2, 0, match.WinnerNone)
	e.OnSnapshotReceived(live(s))
	v := e.View()
	if len(v.Highlights) != 1 {
		t.Fatalf("expected one highlight, got %+v", v.Highlights)
	}
	if v.Highlights[0].RemainingMs != 1000 || v.Highlights[0].Event.PreviousScore != 1 {
		t.Fatalf("expected fresh highlight, got %+v", v.Highlights[0])
	}
}

func TestHighlightsExpireOnTick(t *testing.T) {
	e := newTestEngine()
	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 1, 1, match.WinnerNone)
	e.OnSnapshotReceived(live(s))
	if len(e.View().Highlights) != 2 {
		t.Fatalf("expected two highlights")
	}
	if e.View().Highlights[0].Event.Side != 1 {
		t.Fatalf("expected side 1 first")
	}
	e.OnTick(400 * time.Millisecond)
	if got := e.View().Highlights[1].RemainingMs; got != 600 {
		t.Fatalf("expected 600ms remaining, got %d", got)
	}
	e.OnTick(600 * time.Millisecond)
	if len(e.View().Highlights) != 0 {
		t.Fatalf("expected highlights expired")
	}
}

func TestCountdownIsMonotonicAndResets(t *testing.T) {
	e := newTestEngine()
	out := e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	if !out.TimerStarted || !out.MatchOver {
		t.Fatalf("expected timer started, got %+v", out)
	}
	if e.State() != StateIdleCountdown {
		t.Fatalf("expected IDLE_COUNTDOWN, got %s", e.State())
	}

	prev := e.View().Countdown.RemainingMs
	if prev != 3000 || e.View().Countdown.RemainingSeconds != 3 {
		t.Fatalf("unexpected countdown %+v", e.View().Countdown)
	}
	for i := 0; i < 2; i++ {
		if e.OnTick(time.Second) {
			t.Fatalf("unexpected reset at tick %d", i)
		}
		got := e.View().Countdown.RemainingMs
		if got >= prev {
			t.Fatalf("expected countdown to decrease, %d -> %d", prev, got)
		}
		prev = got
	}
	if !e.OnTick(time.Second) {
		t.Fatalf("expected reset when countdown reaches zero")
	}
	v := e.View()
	if v.State != StateLoading || v.Countdown != nil || v.MatchOver || v.Snapshot.Live {
		t.Fatalf("expected reset view, got %+v", v)
	}
}

func TestCountdownRoundsSecondsUp(t *testing.T) {
	e := newTestEngine()
	e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	e.OnTick(1500 * time.Millisecond)
	c := e.View().Countdown
	if c.RemainingMs != 1500 || c.RemainingSeconds != 2 {
		t.Fatalf("unexpected countdown %+v", c)
	}
}

func TestLiveUpdateCancelsCountdown(t *testing.T) {
	e := newTestEngine()
	e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	e.OnTick(time.Second)

	corrected := testutil.WithScore(testutil.DecidedMatch(), match.GameMX1, 10, 10, match.WinnerNone)
	out := e.OnSnapshotReceived(live(corrected))
	if !out.TimerCancelled || out.MatchOver {
		t.Fatalf("expected cancellation, got %+v", out)
	}
	if e.State() != StateLive || e.TimerRunning() || e.View().Countdown != nil {
		t.Fatalf("expected LIVE without countdown, got %+v", e.View())
	}
	if e.OnTick(10 * time.Second) {
		t.Fatalf("expected no reset once countdown cancelled")
	}
}

func TestDecidedDuplicateKeepsRunningCountdown(t *testing.T) {
	e := newTestEngine()
	e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	e.OnTick(2 * time.Second)

	out := e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	if out.TimerStarted {
		t.Fatalf("expected running countdown to be kept")
	}
	if got := e.View().Countdown.RemainingMs; got != 1000 {
		t.Fatalf("expected 1000ms remaining, got %d", got)
	}
}

func TestEmptyUpdateClearsCountdown(t *testing.T) {
	e := newTestEngine()
	e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	out := e.OnSnapshotReceived(empty())
	if !out.TimerCancelled || e.TimerRunning() || e.State() != StateLoading {
		t.Fatalf("expected empty update to clear timer, got %+v", out)
	}
}

func TestWinnerRegressionIsLoggedAndAccepted(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	e := New(Config{Logger: logger, Now: testutil.NowAt(at)})
	s := testutil.WithScore(testutil.LiveMatch(), match.GameWD, 11, 9, match.WinnerTeam1)
	e.OnSnapshotReceived(live(s))

	regressed := testutil.WithScore(s, match.GameWD, 11, 9, match.WinnerNone)
	out := e.OnSnapshotReceived(live(regressed))
	if len(out.Regressions) != 1 || out.Regressions[0] != match.GameWD {
		t.Fatalf("expected WD regression, got %+v", out.Regressions)
	}
	if e.View().Snapshot.WD.Winner != match.WinnerNone || e.View().CurrentGame != match.GameWD {
		t.Fatalf("expected regression accepted")
	}
	if !strings.Contains(buf.String(), "winner regressed") {
		t.Fatalf("expected warning logged, got %q", buf.String())
	}
}

func TestResetClearsBoard(t *testing.T) {
	e := newTestEngine()
	e.OnSnapshotReceived(live(testutil.DecidedMatch()))
	before := e.Version()
	e.Reset()
	if e.State() != StateLoading || e.TimerRunning() || e.Version() <= before {
		t.Fatalf("expected reset engine, got state %s", e.State())
	}
	if e.View().LastSource != "mlpmatches" {
		t.Fatalf("expected last source kept across reset")
	}
}

func TestFeedErrorSetAndClearedByUpdate(t *testing.T) {
	e := newTestEngine()
	if !e.SetFeedError(feed.Wrap("docs", errTest)) {
		t.Fatalf("expected feed error to change view")
	}
	if e.SetFeedError(feed.Wrap("docs", errTest)) {
		t.Fatalf("expected identical error to be a no-op")
	}
	if e.View().FeedError == "" {
		t.Fatalf("expected feed error in view")
	}
	e.OnSnapshotReceived(live(testutil.LiveMatch()))
	if e.View().FeedError != "" {
		t.Fatalf("expected update to clear feed error")
	}
}

func TestVersionAdvancesOnlyOnChange(t *testing.T) {
	e := newTestEngine()
	v0 := e.Version()
	e.OnTick(time.Second)
	if e.Version() != v0 {
		t.Fatalf("expected idle tick to leave version alone")
	}
	e.OnTick(0)
	e.OnSnapshotReceived(live(testutil.LiveMatch()))
	if e.Version() <= v0 {
		t.Fatalf("expected update to advance version")
	}
}

func TestViewCopiesHistory(t *testing.T) {
	e := newTestEngine()
	s := testutil.LiveMatch()
	s.History = []match.HistoryEntry{{Action: "point"}}
	e.OnSnapshotReceived(live(s))
	v := e.View()
	v.Snapshot.History[0].Action = "mutated"
	if e.View().Snapshot.History[0].Action != "point" {
		t.Fatalf("expected view to own its history slice")
	}
}

func TestRepeatedEmptyUpdatesLeaveLoadingViewAlone(t *testing.T) {
	e := newTestEngine()
	e.OnSnapshotReceived(empty())
	v0 := e.Version()
	for i := 0; i < 3; i++ {
		if out := e.OnSnapshotReceived(empty()); !out.Empty || out.TimerCancelled {
			t.Fatalf("unexpected outcome %+v", out)
		}
	}
	if e.Version() != v0 {
		t.Fatalf("expected repeated empties not to bump version, got %d want %d", e.Version(), v0)
	}

	e.SetFeedError(feed.Wrap("mlpmatches", errTest))
	failing := e.Version()
	e.OnSnapshotReceived(empty())
	if e.Version() <= failing || e.View().FeedError != "" {
		t.Fatalf("expected empty update to clear the feed error")
	}

	e.OnSnapshotReceived(feed.EmptyUpdate("livematches", at))
	if e.View().LastSource != "livematches" {
		t.Fatalf("expected source change to be published")
	}
}
