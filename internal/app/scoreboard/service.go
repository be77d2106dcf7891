package scoreboard

import (
	"context"
	"errors"

	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/engine"
)

// ErrResetUnavailable is returned when no runner is wired for resets.
var ErrResetUnavailable = errors.New("scoreboard: reset unavailable")

// Store exposes the latest published view.
type Store interface {
	View() engine.View
}

// Resetter applies an explicit board reset.
type Resetter interface {
	RequestReset(ctx context.Context) error
}

// CurrentGame is the payload for the game currently in play.
type CurrentGame struct {
	ID         match.GameID       `json:"id"`
	Label      string             `json:"label"`
	Record     match.GameRecord   `json:"record"`
	MatchOver  bool               `json:"matchOver"`
	Highlights []engine.Highlight `json:"highlights"`
}

// Service coordinates scoreboard reads and resets.
type Service struct {
	store    Store
	resetter Resetter
}

// NewService constructs a Service. resetter may be nil.
func NewService(store Store, resetter Resetter) *Service {
	return &Service{store: store, resetter: resetter}
}

// View returns the latest scoreboard view.
func (s *Service) View() engine.View {
	return s.store.View()
}

// CurrentGame returns the game the board is highlighting.
func (s *Service) CurrentGame() CurrentGame {
	v := s.store.View()
	return CurrentGame{
		ID:         v.CurrentGame,
		Label:      v.CurrentGameLabel,
		Record:     v.CurrentRecord(),
		MatchOver:  v.MatchOver,
		Highlights: v.Highlights,
	}
}

// Reset clears the board and returns the resulting view.
func (s *Service) Reset(ctx context.Context) (engine.View, error) {
	if s.resetter == nil {
		return engine.View{}, ErrResetUnavailable
	}
	if err := s.resetter.RequestReset(ctx); err != nil {
		return engine.View{}, err
	}
	return s.store.View(), nil
}
