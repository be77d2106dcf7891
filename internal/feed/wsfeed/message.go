package wsfeed

import "encoding/json"

const (
	typeSnapshot = "snapshot"
	typeEmpty    = "empty"
)

// message is one frame pushed by the upstream socket.
type message struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Document   json.RawMessage `json:"document"`
}
