// Package streaming defines the JSON messages exchanged with a coaching
// server over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/promotion/posecore/pkg/core"
)

// ProtocolVersion is sent in the hello message.
const ProtocolVersion = 1

// Message type constants matching the streaming protocol.
const (
	TypeHello          = "hello"
	TypeSessionResult  = "session_result"
	TypeReferenceSaved = "reference_saved"
	TypeAck            = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload identifies the client after every (re)connect.
type HelloPayload struct {
	Client   string `json:"client"`
	Protocol int    `json:"protocol"`
}

// SessionResultPayload carries one completed session summary.
type SessionResultPayload struct {
	ID          uuid.UUID `json:"id"`
	Sport       string    `json:"sport"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Quality     float64   `json:"quality"`
	MeanError   float64   `json:"meanError"`
	Errors      []float64 `json:"errors"`
	Frames      int       `json:"frames"`
	Dropped     int       `json:"dropped"`
	WristPath   string    `json:"wristPath,omitempty"`
	Failure     string    `json:"failure,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// NewSessionResultPayload converts a stored record to its wire form.
func NewSessionResultPayload(rec *core.SessionRecord) SessionResultPayload {
	return SessionResultPayload{
		ID:          rec.ID,
		Sport:       rec.Sport,
		Action:      rec.Action,
		Outcome:     rec.Outcome(),
		Label:       rec.Label,
		Confidence:  rec.Confidence,
		Quality:     rec.Quality,
		MeanError:   rec.MeanError,
		Errors:      rec.Errors,
		Frames:      rec.Frames,
		Dropped:     rec.Dropped,
		WristPath:   rec.WristPath,
		Failure:     rec.Failure,
		CompletedAt: rec.CompletedAt,
	}
}

// ReferencePayload carries an encoded ideal sequence. Blob is base64 in JSON.
type ReferencePayload struct {
	ID        uint      `json:"id"`
	Sport     string    `json:"sport"`
	Action    string    `json:"action"`
	Blob      []byte    `json:"blob"`
	UpdatedAt time.Time `json:"updatedAt"`
}
