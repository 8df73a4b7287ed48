// pkg/core/pose.go
package core

import (
	"math"
	"time"
)

// Position3D is a point in detector space. 2D detectors leave Z at zero.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - o.
func (p Position3D) Sub(o Position3D) Position3D {
	return Position3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// Scale returns p multiplied by f.
func (p Position3D) Scale(f float64) Position3D {
	return Position3D{X: p.X * f, Y: p.Y * f, Z: p.Z * f}
}

// Distance returns the Euclidean distance between p and o.
func (p Position3D) Distance(o Position3D) float64 {
	d := p.Sub(o)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Finite reports whether no coordinate is NaN or infinite.
func (p Position3D) Finite() bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Midpoint returns the point halfway between p and o.
func (p Position3D) Midpoint(o Position3D) Position3D {
	return Position3D{X: (p.X + o.X) / 2, Y: (p.Y + o.Y) / 2, Z: (p.Z + o.Z) / 2}
}

// Landmark is one detected joint.
type Landmark struct {
	Joint      Joint      `json:"joint"`
	Position   Position3D `json:"position"`
	Confidence float64    `json:"confidence"`
}

// Detection is the raw per-frame output of the external pose detector.
type Detection struct {
	Timestamp time.Duration
	Landmarks []Landmark
}

// PoseFrame is a full-body snapshot at one instant. Landmarks are kept in
// canonical joint order. Frames are values; treat them as immutable.
type PoseFrame struct {
	Timestamp time.Duration
	Landmarks []Landmark
}

// Landmark returns the landmark for the given joint.
func (f PoseFrame) Landmark(j Joint) (Landmark, bool) {
	for _, l := range f.Landmarks {
		if l.Joint == j {
			return l, true
		}
	}
	return Landmark{}, false
}

// Confident returns the landmark for j only if its confidence reaches threshold.
func (f PoseFrame) Confident(j Joint, threshold float64) (Landmark, bool) {
	l, ok := f.Landmark(j)
	if !ok || l.Confidence < threshold {
		return Landmark{}, false
	}
	return l, true
}

// Clone returns a deep copy of the frame.
func (f PoseFrame) Clone() PoseFrame {
	out := PoseFrame{Timestamp: f.Timestamp}
	if f.Landmarks != nil {
		out.Landmarks = make([]Landmark, len(f.Landmarks))
		copy(out.Landmarks, f.Landmarks)
	}
	return out
}

// PoseSequence is an ordered recording of frames.
type PoseSequence struct {
	Sport      string
	Action     string
	RecordedAt time.Time
	Frames     []PoseFrame
}

// Len returns the number of frames.
func (s PoseSequence) Len() int {
	return len(s.Frames)
}

// Duration is the timestamp span between first and last frame.
func (s PoseSequence) Duration() time.Duration {
	if len(s.Frames) < 2 {
		return 0
	}
	return s.Frames[len(s.Frames)-1].Timestamp - s.Frames[0].Timestamp
}
