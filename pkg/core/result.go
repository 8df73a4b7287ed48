// pkg/core/result.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Unmatched marks a live frame with no ideal counterpart.
const Unmatched = -1

// LabelUnknown is returned whenever classification cannot decide.
const LabelUnknown = "unknown"

// AlignmentMap maps each live frame index to an ideal frame index.
// Targets never decrease.
type AlignmentMap struct {
	Targets []int
}

// Len returns the number of live frames covered.
func (m AlignmentMap) Len() int {
	return len(m.Targets)
}

// FrameError is the comparison result for one aligned pair.
type FrameError struct {
	LiveIndex  int     `json:"liveIndex"`
	IdealIndex int     `json:"idealIndex"`
	Progress   float64 `json:"progress"`
	Error      float64 `json:"error"`
	Quality    float64 `json:"quality"`
	Comparable bool    `json:"comparable"`
	Landmarks  int     `json:"landmarks"`
}

// ErrorProfile holds per-frame errors for charting plus the aggregate.
type ErrorProfile struct {
	Frames        []FrameError `json:"frames"`
	MeanError     float64      `json:"meanError"`
	Quality       float64      `json:"quality"`
	MaxErrorScale float64      `json:"maxErrorScale"`
	Compared      int          `json:"compared"`
}

// Errors returns the per-frame error series, skipping non-comparable frames.
func (p ErrorProfile) Errors() []float64 {
	out := make([]float64, 0, len(p.Frames))
	for _, f := range p.Frames {
		if f.Comparable {
			out = append(out, f.Error)
		}
	}
	return out
}

// ClassificationResult is one label from the sport vocabulary with a confidence in [0,1].
type ClassificationResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Unknown returns the degraded classification.
func Unknown() ClassificationResult {
	return ClassificationResult{Label: LabelUnknown, Confidence: 0}
}

// SessionState is the recording session lifecycle state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRecording
	StateFrozen
	StateScored
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFrozen:
		return "frozen"
	case StateScored:
		return "scored"
	default:
		return "invalid"
	}
}

// SessionResult is delivered once per completed session. Either Err is set,
// or Profile and Classification are.
type SessionResult struct {
	SessionID      uuid.UUID
	Epoch          uint64
	Sport          string
	Action         string
	Frames         int
	Dropped        int
	Profile        *ErrorProfile
	Classification ClassificationResult
	Err            error
	CompletedAt    time.Time
}

// Failed reports whether the session produced no score.
func (r SessionResult) Failed() bool {
	return r.Err != nil
}
