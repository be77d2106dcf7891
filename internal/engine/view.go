package engine

import (
	"time"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/scoring"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/timeutil"
)

// Highlight is a pending score animation for one side.
type Highlight struct {
	Event       scoring.ChangeEvent `json:"event"`
	RemainingMs int64               `json:"remainingMs"`
}

// Countdown is the time left before the board resets.
type Countdown struct {
	RemainingMs      int64 `json:"remainingMs"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}

// View is a read-only copy of everything the board renders.
type View struct {
	State            State          `json:"state"`
	Snapshot         match.Snapshot `json:"snapshot"`
	CurrentGame      match.GameID   `json:"currentGame"`
	CurrentGameLabel string         `json:"currentGameLabel"`
	MatchOver        bool           `json:"matchOver"`
	Highlights       []Highlight    `json:"highlights"`
	Countdown        *Countdown     `json:"countdown,omitempty"`
	Version          uint64         `json:"version"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	LastSource       string         `json:"lastSource,omitempty"`
	FeedError        string         `json:"feedError,omitempty"`
}

// CurrentRecord returns the record of the current game.
func (v View) CurrentRecord() match.GameRecord {
	return v.Snapshot.Game(v.CurrentGame)
}

// Highlight returns the pending highlight for side, if any.
func (v View) Highlight(side int) (Highlight, bool) {
	for _, h := range v.Highlights {
		if h.Event.Side == side {
			return h, true
		}
	}
	return Highlight{}, false
}

// View returns a copy of the current outputs.
func (e *Engine) View() View {
	snap := e.snapshot
	if snap.History != nil {
		snap.History = append([]match.HistoryEntry(nil), snap.History...)
	}

	v := View{
		State:            e.state,
		Snapshot:         snap,
		CurrentGame:      e.current,
		CurrentGameLabel: e.current.DisplayName(),
		MatchOver:        e.matchOver,
		Highlights:       []Highlight{},
		Version:          e.version,
		UpdatedAt:        e.updatedAt,
		LastSource:       e.lastSource,
		FeedError:        e.feedError,
	}
	for _, h := range e.highlights {
		if h == nil {
			continue
		}
		v.Highlights = append(v.Highlights, Highlight{Event: h.event, RemainingMs: timeutil.Millis(h.remaining)})
	}
	if e.timerRunning {
		v.Countdown = &Countdown{
			RemainingMs:      timeutil.Millis(e.timerRemaining),
			RemainingSeconds: timeutil.CeilSeconds(e.timerRemaining),
		}
	}
	return v
}
