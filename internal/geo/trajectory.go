// Package geo builds joint trajectories over a sequence of normalized frames.
package geo

import (
	"errors"
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/promotion/posecore/pkg/core"
)

// ErrShortTrajectory is returned when fewer than two confident samples exist.
var ErrShortTrajectory = errors.New("trajectory needs at least 2 points")

// Trajectory returns the path of joint through frames as a line string in
// the XY plane. Samples where the joint is missing or below threshold are
// skipped.
func Trajectory(frames []core.PoseFrame, joint core.Joint, threshold float64) (geom.LineString, error) {
	flatCoords := make([]float64, 0, len(frames)*2)
	for _, f := range frames {
		l, ok := f.Confident(joint, threshold)
		if !ok {
			continue
		}
		flatCoords = append(flatCoords, l.Position.X, l.Position.Y)
	}
	if len(flatCoords) < 4 {
		return geom.LineString{}, fmt.Errorf("%s: %w", joint, ErrShortTrajectory)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// PathLength sums the trajectory lengths of joints. Joints without a usable
// trajectory contribute nothing.
func PathLength(frames []core.PoseFrame, threshold float64, joints ...core.Joint) float64 {
	var total float64
	for _, j := range joints {
		ls, err := Trajectory(frames, j, threshold)
		if err != nil {
			continue
		}
		total += ls.Length()
	}
	return total
}

// Displacement is the straight-line distance between the first and last
// confident samples of joint.
func Displacement(frames []core.PoseFrame, joint core.Joint, threshold float64) (float64, error) {
	ls, err := Trajectory(frames, joint, threshold)
	if err != nil {
		return 0, err
	}
	seq := ls.Coordinates()
	first, last := seq.GetXY(0), seq.GetXY(seq.Length()-1)
	return math.Hypot(last.X-first.X, last.Y-first.Y), nil
}

// WKT renders the trajectory of joint as well-known text, or "" when there
// is no usable trajectory.
func WKT(frames []core.PoseFrame, joint core.Joint, threshold float64) string {
	ls, err := Trajectory(frames, joint, threshold)
	if err != nil {
		return ""
	}
	return ls.AsText()
}
