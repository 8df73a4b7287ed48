// pkg/core/record.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Reference is a persisted ideal sequence blob.
type Reference struct {
	ID        uint
	Sport     string
	Action    string
	Blob      []byte
	UpdatedAt time.Time
}

// SessionRecord is the persisted summary of one recording session.
type SessionRecord struct {
	ID          uuid.UUID
	Sport       string
	Action      string
	Frames      int
	Dropped     int
	Label       string
	Confidence  float64
	Quality     float64
	MeanError   float64
	Errors      []float64
	WristPath   string
	Failure     string
	CompletedAt time.Time
}

// Outcome is "scored" or "failed".
func (r SessionRecord) Outcome() string {
	if r.Failure != "" {
		return "failed"
	}
	return "scored"
}

// ExportMetadata describes an exported session file.
type ExportMetadata struct {
	SessionID uuid.UUID
	Sport     string
	Action    string
	Label     string
	Quality   float64
	Frames    int
}

// RecordFromResult flattens a session result for storage.
func RecordFromResult(r SessionResult) SessionRecord {
	rec := SessionRecord{
		ID:          r.SessionID,
		Sport:       r.Sport,
		Action:      r.Action,
		Frames:      r.Frames,
		Dropped:     r.Dropped,
		Label:       r.Classification.Label,
		Confidence:  r.Classification.Confidence,
		CompletedAt: r.CompletedAt,
	}
	if r.Err != nil {
		rec.Failure = r.Err.Error()
		rec.Label = LabelUnknown
		rec.Confidence = 0
		return rec
	}
	if r.Profile != nil {
		rec.Quality = r.Profile.Quality
		rec.MeanError = r.Profile.MeanError
		rec.Errors = r.Profile.Errors()
	}
	return rec
}
