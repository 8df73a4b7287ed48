// Package v1 contains the v1 serialization format for pose sequences.
// Landmarks are stored as dense rows so a recorded swing stays compact.
package v1

import "time"

// Version is the format version written by this package.
const Version = 1

// Document is the root JSON structure for v1.
type Document struct {
	Format     string     `json:"format"`
	Version    int        `json:"version"`
	Sport      string     `json:"sport,omitempty"`
	Action     string     `json:"action,omitempty"`
	RecordedAt *time.Time `json:"recordedAt,omitempty"`
	Joints     []string   `json:"joints"`
	Frames     []Frame    `json:"frames"`
}

// Frame is one pose. L has one row per entry in Document.Joints; a row is
// [x, y, z, confidence], or null when the joint was not detected.
type Frame struct {
	T int64       `json:"t"` // nanoseconds since recording start
	L [][]float64 `json:"l"`
}
