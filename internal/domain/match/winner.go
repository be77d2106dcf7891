package match

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Winner records which side took a game.
type Winner string

const (
	WinnerNone  Winner = "-"
	WinnerTeam1 Winner = "1"
	WinnerTeam2 Winner = "2"
)

// Decided reports whether a team has been recorded as the winner.
func (w Winner) Decided() bool {
	return w == WinnerTeam1 || w == WinnerTeam2
}

// Side returns 1 or 2 for a decided winner and 0 otherwise.
func (w Winner) Side() int {
	switch w {
	case WinnerTeam1:
		return 1
	case WinnerTeam2:
		return 2
	default:
		return 0
	}
}

// Normalize maps anything that is not a team value to WinnerNone.
func (w Winner) Normalize() Winner {
	return ParseWinner(string(w))
}

// ParseWinner converts a feed value into a canonical Winner.
func ParseWinner(raw string) Winner {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return WinnerNone
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		switch f {
		case 1:
			return WinnerTeam1
		case 2:
			return WinnerTeam2
		default:
			return WinnerNone
		}
	}
	return WinnerNone
}

// UnmarshalJSON accepts numbers, strings and null.
func (w *Winner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = WinnerNone
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*w = WinnerNone
			return nil
		}
		*w = ParseWinner(s)
		return nil
	}
	*w = ParseWinner(string(data))
	return nil
}

// MarshalJSON always writes the canonical string form.
func (w Winner) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(w.Normalize()))
}
