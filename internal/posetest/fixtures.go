// Package posetest provides synthetic poses for tests.
package posetest

import (
	"math"
	"time"

	"github.com/promotion/posecore/pkg/core"
)

// skeleton is a standing subject with torso length 0.5 (hip center at origin).
var skeleton = map[core.Joint]core.Position3D{
	core.Nose:          {X: 0, Y: 0.65},
	core.LeftEye:       {X: -0.03, Y: 0.68},
	core.RightEye:      {X: 0.03, Y: 0.68},
	core.LeftEar:       {X: -0.06, Y: 0.66},
	core.RightEar:      {X: 0.06, Y: 0.66},
	core.Neck:          {X: 0, Y: 0.55},
	core.LeftShoulder:  {X: -0.15, Y: 0.5},
	core.RightShoulder: {X: 0.15, Y: 0.5},
	core.LeftElbow:     {X: -0.25, Y: 0.3},
	core.RightElbow:    {X: 0.25, Y: 0.3},
	core.LeftWrist:     {X: -0.3, Y: 0.1},
	core.RightWrist:    {X: 0.3, Y: 0.1},
	core.Root:          {X: 0, Y: 0},
	core.LeftHip:       {X: -0.1, Y: 0},
	core.RightHip:      {X: 0.1, Y: 0},
	core.LeftKnee:      {X: -0.1, Y: -0.45},
	core.RightKnee:     {X: 0.1, Y: -0.45},
	core.LeftAnkle:     {X: -0.1, Y: -0.9},
	core.RightAnkle:    {X: 0.1, Y: -0.9},
}

type options struct {
	dx, dy     float64
	scale      float64
	lift       float64
	confidence float64
	without    map[core.Joint]bool
	lowConf    map[core.Joint]bool
	corrupt    map[core.Joint]bool
}

// Option adjusts a generated pose.
type Option func(*options)

// Offset translates the subject in detector space.
func Offset(dx, dy float64) Option {
	return func(o *options) { o.dx, o.dy = dx, dy }
}

// Scale resizes the subject.
func Scale(s float64) Option {
	return func(o *options) { o.scale = s }
}

// Lift raises the right arm by v torso lengths at the wrist.
func Lift(v float64) Option {
	return func(o *options) { o.lift = v }
}

// Confidence sets the confidence of every landmark.
func Confidence(c float64) Option {
	return func(o *options) { o.confidence = c }
}

// Without omits joints from the pose.
func Without(joints ...core.Joint) Option {
	return func(o *options) {
		for _, j := range joints {
			o.without[j] = true
		}
	}
}

// LowConfidence reports the given joints at zero confidence.
func LowConfidence(joints ...core.Joint) Option {
	return func(o *options) {
		for _, j := range joints {
			o.lowConf[j] = true
		}
	}
}

// Corrupt reports NaN for the X coordinate of the given joints.
func Corrupt(joints ...core.Joint) Option {
	return func(o *options) {
		for _, j := range joints {
			o.corrupt[j] = true
		}
	}
}

// Landmarks builds the landmark list in canonical order.
func Landmarks(opts ...Option) []core.Landmark {
	o := &options{scale: 1, confidence: 0.9, without: map[core.Joint]bool{}, lowConf: map[core.Joint]bool{}, corrupt: map[core.Joint]bool{}}
	for _, opt := range opts {
		opt(o)
	}

	out := make([]core.Landmark, 0, len(core.Joints))
	for _, j := range core.Joints {
		if o.without[j] {
			continue
		}
		p := skeleton[j]
		switch j {
		case core.RightWrist:
			p.Y += o.lift * 0.5
		case core.RightElbow:
			p.Y += o.lift * 0.25
		}
		conf := o.confidence
		if o.lowConf[j] {
			conf = 0
		}
		pos := core.Position3D{X: p.X*o.scale + o.dx, Y: p.Y*o.scale + o.dy, Z: p.Z * o.scale}
		if o.corrupt[j] {
			pos.X = math.NaN()
		}
		out = append(out, core.Landmark{Joint: j, Position: pos, Confidence: conf})
	}
	return out
}

// Frame builds a frame at ts.
func Frame(ts time.Duration, opts ...Option) core.PoseFrame {
	return core.PoseFrame{Timestamp: ts, Landmarks: Landmarks(opts...)}
}

// Detection builds a raw detection at ts.
func Detection(ts time.Duration, opts ...Option) core.Detection {
	return core.Detection{Timestamp: ts, Landmarks: Landmarks(opts...)}
}

// FrameInterval is the spacing of generated sequences (30 fps).
const FrameInterval = 33 * time.Millisecond

// Sequence builds n frames where frame i has its arm lifted by lift(i).
func Sequence(sport, action string, n int, lift func(i int) float64, opts ...Option) core.PoseSequence {
	seq := core.PoseSequence{Sport: sport, Action: action, Frames: make([]core.PoseFrame, 0, n)}
	for i := 0; i < n; i++ {
		frameOpts := append([]Option{Lift(lift(i))}, opts...)
		seq.Frames = append(seq.Frames, Frame(time.Duration(i)*FrameInterval, frameOpts...))
	}
	return seq
}

// Ramp lifts the arm linearly from 0 to max over n frames.
func Ramp(n int, max float64) func(int) float64 {
	return func(i int) float64 {
		if n < 2 {
			return 0
		}
		return max * float64(i) / float64(n-1)
	}
}
