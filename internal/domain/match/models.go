package match

// GameID identifies one of the five game slots in a team match.
type GameID string

const (
	GameWD  GameID = "WD"
	GameMD  GameID = "MD"
	GameMX1 GameID = "MX1"
	GameMX2 GameID = "MX2"
	GameDB  GameID = "DB"
)

// GameOrder is the fixed order games are played in.
var GameOrder = [...]GameID{GameWD, GameMD, GameMX1, GameMX2, GameDB}

// RegularGames are the four games played before any tie-break.
var RegularGames = [...]GameID{GameWD, GameMD, GameMX1, GameMX2}

var displayNames = map[GameID]string{
	GameWD:  "Women's Doubles",
	GameMD:  "Men's Doubles",
	GameMX1: "Mixed Doubles",
	GameMX2: "Mixed Doubles",
	GameDB:  "Dream Breaker",
}

// DisplayName returns the broadcast label for the game.
func (g GameID) DisplayName() string {
	if name, ok := displayNames[g]; ok {
		return name
	}
	return string(g)
}

// Valid reports whether g is one of the five known game ids.
func (g GameID) Valid() bool {
	_, ok := displayNames[g]
	return ok
}

// GameRecord is the state of a single game.
type GameRecord struct {
	Team1Player1 string `json:"team1Player1"`
	Team1Player2 string `json:"team1Player2"`
	Team2Player1 string `json:"team2Player1"`
	Team2Player2 string `json:"team2Player2"`
	Team1Score   int    `json:"team1Score"`
	Team2Score   int    `json:"team2Score"`
	Winner       Winner `json:"winner"`
}

// Score returns the score for side 1 or 2; any other side returns 0.
func (g GameRecord) Score(side int) int {
	switch side {
	case 1:
		return g.Team1Score
	case 2:
		return g.Team2Score
	default:
		return 0
	}
}

// HistoryEntry is one scorekeeper action recorded on the match document.
type HistoryEntry struct {
	Action  string `json:"action"`
	Type    string `json:"type"`
	T1      string `json:"t1"`
	T2      string `json:"t2"`
	T1P1    string `json:"t1p1"`
	T1P2    string `json:"t1p2"`
	T2P1    string `json:"t2p1"`
	T2P2    string `json:"t2p2"`
	T1Score int    `json:"t1score"`
	T2Score int    `json:"t2score"`
	Date    string `json:"date"`
}

// Snapshot is one point-in-time match document.
type Snapshot struct {
	WD  GameRecord `json:"WD"`
	MD  GameRecord `json:"MD"`
	MX1 GameRecord `json:"MX1"`
	MX2 GameRecord `json:"MX2"`
	DB  GameRecord `json:"DB"`

	Team1      string `json:"team1"`
	Team2      string `json:"team2"`
	Team1Score int    `json:"team1Score"`
	Team2Score int    `json:"team2Score"`
	Team1Logo  string `json:"team1Logo"`
	Team2Logo  string `json:"team2Logo"`

	EventID    string `json:"eventID"`
	CourtID    string `json:"court"`
	DivisionID string `json:"divisionID"`
	RoundID    string `json:"roundID"`
	Status     string `json:"status"`
	Live       bool   `json:"live"`

	History []HistoryEntry `json:"history,omitempty"`
}

// EmptyGame returns the canonical undecided, scoreless game.
func EmptyGame() GameRecord {
	return GameRecord{Winner: WinnerNone}
}

// EmptyMatch returns the canonical empty match used before any snapshot
// arrives and after a reset.
func EmptyMatch() Snapshot {
	return Snapshot{
		WD:  EmptyGame(),
		MD:  EmptyGame(),
		MX1: EmptyGame(),
		MX2: EmptyGame(),
		DB:  EmptyGame(),
	}
}

// Game returns the record for id. Unknown ids yield the empty game.
func (s Snapshot) Game(id GameID) GameRecord {
	switch id {
	case GameWD:
		return s.WD
	case GameMD:
		return s.MD
	case GameMX1:
		return s.MX1
	case GameMX2:
		return s.MX2
	case GameDB:
		return s.DB
	default:
		return EmptyGame()
	}
}

// WithGame returns a copy of s with the record for id replaced.
func (s Snapshot) WithGame(id GameID, rec GameRecord) Snapshot {
	switch id {
	case GameWD:
		s.WD = rec
	case GameMD:
		s.MD = rec
	case GameMX1:
		s.MX1 = rec
	case GameMX2:
		s.MX2 = rec
	case GameDB:
		s.DB = rec
	}
	return s
}

// Normalize returns a copy with canonical winners and non-negative scores.
func (s Snapshot) Normalize() Snapshot {
	for _, id := range GameOrder {
		rec := s.Game(id)
		rec.Winner = rec.Winner.Normalize()
		if rec.Team1Score < 0 {
			rec.Team1Score = 0
		}
		if rec.Team2Score < 0 {
			rec.Team2Score = 0
		}
		s = s.WithGame(id, rec)
	}
	if len(s.History) > 0 {
		s.History = append([]HistoryEntry(nil), s.History...)
	}
	return s
}

// Key returns the routing key for the snapshot's (event, court) pair.
func (s Snapshot) Key() string {
	return RoutingKey(s.EventID, s.CourtID)
}

// RoutingKey joins an event id and court id into a single key.
func RoutingKey(eventID, courtID string) string {
	return eventID + "|" + courtID
}
