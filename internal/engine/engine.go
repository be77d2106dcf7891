// Package engine reconciles feed updates into the authoritative scoreboard
// state and drives the reset countdown.
package engine

import (
	"log/slog"
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/feed"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/logging"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/scoring"
)

const (
	DefaultResetAfter        = 180 * time.Second
	DefaultHighlightDuration = time.Second
)

// State is the engine lifecycle phase.
type State string

const (
	StateLoading       State = "LOADING"
	StateLive          State = "LIVE"
	StateIdleCountdown State = "IDLE_COUNTDOWN"
)

// Config tunes an Engine.
type Config struct {
	ResetAfter        time.Duration
	HighlightDuration time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
}

// Outcome summarizes what one update did.
type Outcome struct {
	Empty          bool
	Changes        []scoring.ChangeEvent
	MatchOver      bool
	TimerStarted   bool
	TimerCancelled bool
	Regressions    []match.GameID
}

type highlight struct {
	event     scoring.ChangeEvent
	remaining time.Duration
}

// Engine is the scoreboard state machine. It is not safe for concurrent
// use; Runner owns it.
type Engine struct {
	resetAfter        time.Duration
	highlightDuration time.Duration
	now               func() time.Time
	logger            *slog.Logger

	state      State
	snapshot   match.Snapshot
	current    match.GameID
	matchOver  bool
	highlights [2]*highlight

	timerRunning   bool
	timerRemaining time.Duration

	version    uint64
	updatedAt  time.Time
	lastSource string
	feedError  string
}

// New returns an engine in LOADING with the empty match.
func New(cfg Config) *Engine {
	e := &Engine{
		resetAfter:        cfg.ResetAfter,
		highlightDuration: cfg.HighlightDuration,
		now:               cfg.Now,
		logger:            cfg.Logger,
	}
	if e.resetAfter <= 0 {
		e.resetAfter = DefaultResetAfter
	}
	if e.highlightDuration <= 0 {
		e.highlightDuration = DefaultHighlightDuration
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.clear()
	return e
}

// OnSnapshotReceived applies one feed update.
func (e *Engine) OnSnapshotReceived(u feed.Update) Outcome {
	prevSource, prevError := e.lastSource, e.feedError
	e.lastSource = u.Source
	e.feedError = ""

	if u.Empty() {
		// LOADING already shows the empty match; only the source or a
		// cleared feed error can change the view.
		if e.state == StateLoading {
			if prevSource != u.Source || prevError != "" {
				e.touch(u.ReceivedAt)
			}
			return Outcome{Empty: true}
		}
		wasRunning := e.timerRunning
		e.clear()
		e.touch(u.ReceivedAt)
		return Outcome{Empty: true, TimerCancelled: wasRunning}
	}

	prev := e.snapshot
	next := u.Snapshot.Normalize()

	regressions := winnerRegressions(prev, next)
	for _, id := range regressions {
		logging.Warn(e.logger, "winner regressed to undecided",
			slog.String(logging.FieldGame, string(id)),
			slog.String("previous_winner", string(prev.Game(id).Winner)),
			slog.String(logging.FieldSource, u.Source),
		)
	}

	current := scoring.SelectCurrentGame(next)
	changes := scoring.DetectChanges(prev, next, current)

	e.snapshot = next
	e.current = current
	e.matchOver = scoring.IsMatchOver(next)

	out := Outcome{Changes: changes, MatchOver: e.matchOver, Regressions: regressions}
	switch {
	case e.matchOver && !e.timerRunning:
		e.timerRunning = true
		e.timerRemaining = e.resetAfter
		out.TimerStarted = true
		tally := scoring.CountRegularGames(next)
		logging.Info(e.logger, "match decided, reset scheduled",
			slog.Int("team1_games", tally.Team1),
			slog.Int("team2_games", tally.Team2),
			slog.Int64(logging.FieldDurationMS, e.resetAfter.Milliseconds()),
		)
	case !e.matchOver && e.timerRunning:
		e.timerRunning = false
		e.timerRemaining = 0
		out.TimerCancelled = true
		logging.Info(e.logger, "reset cancelled by live update", slog.String(logging.FieldGame, string(current)))
	}

	if e.matchOver {
		e.state = StateIdleCountdown
	} else {
		e.state = StateLive
	}

	for _, ev := range changes {
		e.highlights[ev.Side-1] = &highlight{event: ev, remaining: e.highlightDuration}
	}

	e.touch(u.ReceivedAt)
	return out
}

// OnTick advances highlights and the countdown by elapsed. It reports
// whether the countdown expired and reset the engine.
func (e *Engine) OnTick(elapsed time.Duration) bool {
	if elapsed <= 0 {
		return false
	}

	changed := false
	for i, h := range e.highlights {
		if h == nil {
			continue
		}
		changed = true
		h.remaining -= elapsed
		if h.remaining <= 0 {
			e.highlights[i] = nil
		}
	}

	if e.timerRunning {
		e.timerRemaining -= elapsed
		if e.timerRemaining <= 0 {
			e.clear()
			e.touch(time.Time{})
			return true
		}
		changed = true
	}

	if changed {
		e.touch(time.Time{})
	}
	return false
}

// Reset returns the engine to LOADING with the empty match, as if the
// countdown had expired.
func (e *Engine) Reset() {
	e.clear()
	e.touch(time.Time{})
}

// SetFeedError records the latest feed failure, or clears it when err is
// nil. It reports whether the view changed.
func (e *Engine) SetFeedError(err error) bool {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg == e.feedError {
		return false
	}
	e.feedError = msg
	e.touch(time.Time{})
	return true
}

// State returns the current lifecycle phase.
func (e *Engine) State() State { return e.state }

// TimerRunning reports whether a reset countdown is pending.
func (e *Engine) TimerRunning() bool { return e.timerRunning }

// Version increases on every mutation.
func (e *Engine) Version() uint64 { return e.version }

func (e *Engine) clear() {
	e.state = StateLoading
	e.snapshot = match.EmptyMatch()
	e.current = match.GameWD
	e.matchOver = false
	e.highlights = [2]*highlight{}
	e.timerRunning = false
	e.timerRemaining = 0
}

func (e *Engine) touch(at time.Time) {
	if at.IsZero() {
		at = e.now()
	}
	e.version++
	e.updatedAt = at.UTC()
}

func winnerRegressions(prev, next match.Snapshot) []match.GameID {
	var out []match.GameID
	for _, id := range match.GameOrder {
		if prev.Game(id).Winner.Decided() && !next.Game(id).Winner.Decided() {
			out = append(out, id)
		}
	}
	return out
}
