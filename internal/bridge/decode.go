package bridge

import (
	"encoding/json"
)

// MaxPayloadBytes bounds the raw payloads the decoder will parse.
const MaxPayloadBytes = 64 << 10

// envelope is the only recognized wire shape:
//
//	{"notification": {"title": string, "message": string}}
type envelope struct {
	Notification *struct {
		Title   *string `json:"title"`
		Message *string `json:"message"`
	} `json:"notification"`
}

// Decode parses a raw page payload. It is total: any input that is not a
// well-formed notification, including oversized or non-JSON text, yields
// (nil, false). Decode has no side effects.
func Decode(raw string) (Message, bool) {
	if len(raw) == 0 || len(raw) > MaxPayloadBytes {
		return nil, false
	}

	var env envelope
	// Wrong field types (e.g. a numeric title) fail here as well.
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false
	}
	n := env.Notification
	if n == nil || n.Title == nil || n.Message == nil {
		return nil, false
	}
	return Notify{Title: *n.Title, Body: *n.Message}, true
}
