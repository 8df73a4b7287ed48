package pose

import (
	"math"

	"github.com/promotion/posecore/pkg/core"
)

// minTorso is the smallest torso length that can be used as a scale.
const minTorso = 1e-9

// Normalize centers the frame on the hip midpoint and scales it so the
// hip-to-shoulder distance is 1. Comparisons made on normalized frames are
// invariant to where the subject stands and how large they appear.
func Normalize(f core.PoseFrame, threshold float64) (core.PoseFrame, error) {
	ls, okLS := f.Confident(core.LeftShoulder, threshold)
	rs, okRS := f.Confident(core.RightShoulder, threshold)
	lh, okLH := f.Confident(core.LeftHip, threshold)
	rh, okRH := f.Confident(core.RightHip, threshold)

	var missing []core.Joint
	for _, c := range []struct {
		j  core.Joint
		ok bool
	}{{core.LeftShoulder, okLS}, {core.RightShoulder, okRS}, {core.LeftHip, okLH}, {core.RightHip, okRH}} {
		if !c.ok {
			missing = append(missing, c.j)
		}
	}
	if len(missing) > 0 {
		return core.PoseFrame{}, &core.IncompletePoseError{Missing: missing}
	}

	hipCenter := lh.Position.Midpoint(rh.Position)
	shoulderCenter := ls.Position.Midpoint(rs.Position)
	torso := hipCenter.Distance(shoulderCenter)
	if !(torso >= minTorso) || math.IsInf(torso, 0) {
		return core.PoseFrame{}, &core.IncompletePoseError{Reason: "degenerate torso length"}
	}

	out := core.PoseFrame{
		Timestamp: f.Timestamp,
		Landmarks: make([]core.Landmark, len(f.Landmarks)),
	}
	for i, l := range f.Landmarks {
		l.Position = l.Position.Sub(hipCenter).Scale(1 / torso)
		out.Landmarks[i] = l
	}
	return out, nil
}

// NormalizedSequence holds normalized frames. Entries whose frame could not
// be normalized have OK set to false.
type NormalizedSequence struct {
	Frames []core.PoseFrame
	OK     []bool
}

// NormalizeSequence normalizes every frame of s.
func NormalizeSequence(s core.PoseSequence, threshold float64) NormalizedSequence {
	out := NormalizedSequence{
		Frames: make([]core.PoseFrame, len(s.Frames)),
		OK:     make([]bool, len(s.Frames)),
	}
	for i, f := range s.Frames {
		n, err := Normalize(f, threshold)
		if err != nil {
			continue
		}
		out.Frames[i] = n
		out.OK[i] = true
	}
	return out
}
