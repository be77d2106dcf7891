package docstore

import "encoding/json"

type documentsResponse struct {
	Documents     []json.RawMessage `json:"documents"`
	NextPageToken string            `json:"nextPageToken"`
}
