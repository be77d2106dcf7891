package match

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// Decode parses a match document. Missing or malformed game entries fall
// back to the empty game; only input that is not a JSON object fails.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode match snapshot: %w", err)
	}
	return s.Normalize(), nil
}

// UnmarshalJSON decodes over the empty match so absent keys keep defaults.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	out := plain(EmptyMatch())
	aux := struct {
		*plain
		Team1Score flexInt         `json:"team1Score"`
		Team2Score flexInt         `json:"team2Score"`
		Live       flexBool        `json:"live"`
		History    json.RawMessage `json:"history"`
	}{plain: &out}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out.Team1Score = int(aux.Team1Score)
	out.Team2Score = int(aux.Team2Score)
	out.Live = bool(aux.Live)
	out.History = nil
	if len(aux.History) > 0 {
		var history []HistoryEntry
		if err := json.Unmarshal(aux.History, &history); err == nil {
			out.History = history
		}
	}
	*s = Snapshot(out)
	return nil
}

// UnmarshalJSON tolerates null, non-object values and loosely typed fields.
func (g *GameRecord) UnmarshalJSON(data []byte) error {
	*g = EmptyGame()
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var raw struct {
		Team1Player1 flexString `json:"team1Player1"`
		Team1Player2 flexString `json:"team1Player2"`
		Team2Player1 flexString `json:"team2Player1"`
		Team2Player2 flexString `json:"team2Player2"`
		Team1Score   flexInt    `json:"team1Score"`
		Team2Score   flexInt    `json:"team2Score"`
		Winner       Winner     `json:"winner"`
	}
	raw.Winner = WinnerNone
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	*g = GameRecord{
		Team1Player1: string(raw.Team1Player1),
		Team1Player2: string(raw.Team1Player2),
		Team2Player1: string(raw.Team2Player1),
		Team2Player2: string(raw.Team2Player2),
		Team1Score:   int(raw.Team1Score),
		Team2Score:   int(raw.Team2Score),
		Winner:       raw.Winner.Normalize(),
	}
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return nil
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	*n = flexInt(int(f))
	return nil
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	*b = false
	data = bytes.TrimSpace(data)
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "true", "1", "yes":
		*b = true
	}
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*s = flexString(v)
	return nil
}
