// Package pose builds and normalizes pose frames from raw detector output.
package pose

import (
	"math"
	"sort"
	"time"

	"github.com/promotion/posecore/pkg/core"
)

// Builder turns raw detections into canonical frames.
type Builder struct {
	threshold float64
	required  []core.Joint
}

// NewBuilder creates a Builder that requires the core joints at the given confidence.
func NewBuilder(threshold float64) *Builder {
	return &Builder{
		threshold: threshold,
		required:  core.CoreJoints,
	}
}

// Threshold returns the minimum landmark confidence.
func (b *Builder) Threshold() float64 {
	return b.threshold
}

// Build validates a detection and returns a frame in canonical joint order.
// Unknown joints and landmarks with a non-finite coordinate are ignored; for
// duplicate joints the last one wins. Every
// known landmark is kept, including low-confidence ones, but the frame is
// rejected with *core.IncompletePoseError when a core joint is missing or
// below the threshold.
func (b *Builder) Build(d core.Detection) (core.PoseFrame, error) {
	byJoint := make(map[core.Joint]core.Landmark, len(d.Landmarks))
	for _, l := range d.Landmarks {
		if !l.Joint.Valid() || !l.Position.Finite() {
			continue
		}
		l.Confidence = clamp01(l.Confidence)
		byJoint[l.Joint] = l
	}

	confident := 0
	for _, l := range byJoint {
		if l.Confidence >= b.threshold {
			confident++
		}
	}
	if confident == 0 {
		return core.PoseFrame{}, &core.IncompletePoseError{Reason: "no landmark above confidence threshold"}
	}

	var missing []core.Joint
	for _, j := range b.required {
		if l, ok := byJoint[j]; !ok || l.Confidence < b.threshold {
			missing = append(missing, j)
		}
	}
	if len(missing) > 0 {
		return core.PoseFrame{}, &core.IncompletePoseError{Missing: missing}
	}

	landmarks := make([]core.Landmark, 0, len(byJoint))
	for _, l := range byJoint {
		landmarks = append(landmarks, l)
	}
	sort.Slice(landmarks, func(i, k int) bool {
		return landmarks[i].Joint.Index() < landmarks[k].Joint.Index()
	})

	return core.PoseFrame{Timestamp: d.Timestamp, Landmarks: landmarks}, nil
}

// Substitute reuses the landmarks of prev at a new timestamp.
func Substitute(prev core.PoseFrame, ts time.Duration) core.PoseFrame {
	f := prev.Clone()
	f.Timestamp = ts
	return f
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
