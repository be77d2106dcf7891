package scoring

import "github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"

const gamesToWin = 3

// Tally counts decided regular games (WD, MD, MX1, MX2) per side.
type Tally struct {
	Team1 int
	Team2 int
}

// TieBreak reports whether the regular games are split 2-2.
func (t Tally) TieBreak() bool {
	return t.Team1 == 2 && t.Team2 == 2
}

// CountRegularGames tallies decided winners across the regular games.
func CountRegularGames(s match.Snapshot) Tally {
	var t Tally
	for _, id := range match.RegularGames {
		switch s.Game(id).Winner.Normalize() {
		case match.WinnerTeam1:
			t.Team1++
		case match.WinnerTeam2:
			t.Team2++
		}
	}
	return t
}

// IsMatchOver reports whether a side has won three regular games, or the
// regular games are split 2-2 and the tie-break has a winner. Only winner
// fields are consulted.
func IsMatchOver(s match.Snapshot) bool {
	t := CountRegularGames(s)
	if t.Team1 >= gamesToWin || t.Team2 >= gamesToWin {
		return true
	}
	if t.TieBreak() {
		return s.Game(match.GameDB).Winner.Decided()
	}
	return false
}
