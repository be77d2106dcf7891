package testutil

import (
	"github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"
)

const (
	SampleEventID = "2024 MLP6"
	SampleCourtID = "Grandstand"
)

// LiveMatch returns a live snapshot for the sample pair with no games decided.
func LiveMatch() match.Snapshot {
	s := match.EmptyMatch()
	s.Team1 = "Frisco Pandas"
	s.Team2 = "Columbus Sliders"
	s.EventID = SampleEventID
	s.CourtID = SampleCourtID
	s.Live = true
	return s
}

// WithScore returns s with the given game's scores and winner set.
func WithScore(s match.Snapshot, id match.GameID, team1, team2 int, winner match.Winner) match.Snapshot {
	rec := s.Game(id)
	rec.Team1Score = team1
	rec.Team2Score = team2
	rec.Winner = winner
	return s.WithGame(id, rec)
}

// DecidedMatch returns a live snapshot team 1 has won 3-0.
func DecidedMatch() match.Snapshot {
	s := LiveMatch()
	s = WithScore(s, match.GameWD, 11, 7, match.WinnerTeam1)
	s = WithScore(s, match.GameMD, 11, 9, match.WinnerTeam1)
	s = WithScore(s, match.GameMX1, 11, 4, match.WinnerTeam1)
	s.Team1Score = 3
	return s
}

// MatchJSON is a document-store representation of a live match in progress.
const MatchJSON = `{
  "WD": {"team1Player1": "Anna Bright", "team1Player2": "Parris Todd", "team2Player1": "Jorja Johnson", "team2Player2": "Vivian Glozman", "team1Score": 11, "team2Score": 9, "winner": 1},
  "MD": {"team1Player1": "Hayden Patriquin", "team1Player2": "JW Johnson", "team2Player1": "Ben Johns", "team2Player2": "Collin Johns", "team1Score": "4", "team2Score": 2, "winner": "-"},
  "team1": "Frisco Pandas",
  "team2": "Columbus Sliders",
  "team1Score": 1,
  "team2Score": 0,
  "eventID": "2024 MLP6",
  "court": "Grandstand",
  "live": true
}`
