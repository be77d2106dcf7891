package scoring

import "github.com/preston-bernstein/mlp-scoreboard-service/internal/domain/match"

// ChangeEvent marks a score change on one side of the current game.
type ChangeEvent struct {
	Side          int          `json:"side"`
	PreviousScore int          `json:"previousScore"`
	Score         int          `json:"score"`
	Game          match.GameID `json:"game"`
}

// DetectChanges compares the scores of game between prev and next. Side 1
// is reported before side 2. Identical snapshots yield nil.
func DetectChanges(prev, next match.Snapshot, game match.GameID) []ChangeEvent {
	before := prev.Game(game)
	after := next.Game(game)

	var events []ChangeEvent
	for _, side := range [...]int{1, 2} {
		if before.Score(side) != after.Score(side) {
			events = append(events, ChangeEvent{
				Side:          side,
				PreviousScore: before.Score(side),
				Score:         after.Score(side),
				Game:          game,
			})
		}
	}
	return events
}
