// Package scoring derives match state from a snapshot. Every function here
// is pure and depends only on its arguments.
package scoring

import "github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"

// SelectCurrentGame returns the first game in play order without a decided
// winner, or DB once every game is decided.
func SelectCurrentGame(s match.Snapshot) match.GameID {
	for _, id := range match.GameOrder {
		if !s.Game(id).Winner.Decided() {
			return id
		}
	}
	return match.GameDB
}
