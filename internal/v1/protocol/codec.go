package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/quietloop/syncradio/internal/v1/playback"
)

// ErrMalformedFrame is returned by Decode for any frame that is not valid
// UTF-8 JSON, is not a JSON object, or lacks the required "type" field.
var ErrMalformedFrame = errors.New("malformed frame")

// Number tolerantly decodes a JSON number field. Per the wire contract,
// missing or non-numeric fields default to zero rather than failing the
// whole frame.
type Number float64

// UnmarshalJSON implements json.Unmarshaler with a default-to-zero fallback.
func (n *Number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// Float64 returns the decoded value, clamped to be non-negative.
func (n Number) Float64() float64 {
	return playback.ClampPosition(float64(n))
}

// Inbound is the envelope for every client-to-server frame. Fields not
// relevant to a given Type are simply left at their zero value; unknown
// JSON fields are ignored.
type Inbound struct {
	Type         Kind          `json:"type"`
	RoomID       string        `json:"roomId,omitempty"`
	Song         playback.Song `json:"song,omitempty"`
	Position     Number        `json:"position,omitempty"`
	SetAsCurrent bool          `json:"setAsCurrent,omitempty"`
	RequestID    string        `json:"requestId,omitempty"`
	SongID       string        `json:"songId,omitempty"`
}

// Decode parses a raw WebSocket frame into an Inbound message. It rejects
// non-UTF-8 payloads, non-object JSON, and objects missing the required
// "type" field, surfacing all three as ErrMalformedFrame (or a wrapped
// variant carrying a human-readable reason).
func Decode(raw []byte) (Inbound, error) {
	var msg Inbound

	if !utf8.Valid(raw) {
		return msg, ErrMalformedFrame
	}

	// Reject anything that isn't a JSON object outright (numbers, arrays,
	// strings, bare null) before attempting to decode fields.
	if !looksLikeObject(raw) {
		return msg, ErrMalformedFrame
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, ErrMalformedFrame
	}

	if msg.Type == "" {
		return msg, fmt.Errorf("%w: missing required field: type", ErrMalformedFrame)
	}

	return msg, nil
}

func looksLikeObject(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
