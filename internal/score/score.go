// Package score compares an aligned live sequence against its ideal.
package score

import (
	"math"

	"github.com/promotion/posecore/internal/align"
	"github.com/promotion/posecore/internal/pose"
	"github.com/promotion/posecore/pkg/core"
)

// DefaultMaxErrorScale is the mean error, in torso lengths, that maps to
// quality 0.
const DefaultMaxErrorScale = 1.0

// Config holds the scorer settings.
type Config struct {
	// Threshold is the minimum landmark confidence for a landmark to be compared.
	Threshold float64
	// MaxErrorScale is the default error that maps to quality 0.
	MaxErrorScale float64
	// ActionScales overrides MaxErrorScale per action label.
	ActionScales map[string]float64
}

// Scorer turns aligned frame pairs into an error profile.
type Scorer struct {
	cfg Config
}

// New creates a Scorer. Non-positive scales fall back to DefaultMaxErrorScale.
func New(cfg Config) *Scorer {
	if cfg.MaxErrorScale <= 0 {
		cfg.MaxErrorScale = DefaultMaxErrorScale
	}
	scales := make(map[string]float64, len(cfg.ActionScales))
	for k, v := range cfg.ActionScales {
		if v > 0 {
			scales[core.ActionLabel(k)] = v
		}
	}
	cfg.ActionScales = scales
	return &Scorer{cfg: cfg}
}

// Threshold returns the landmark confidence threshold.
func (s *Scorer) Threshold() float64 {
	return s.cfg.Threshold
}

// ScaleFor returns the max error scale used for action.
func (s *Scorer) ScaleFor(action string) float64 {
	if v, ok := s.cfg.ActionScales[core.ActionLabel(action)]; ok {
		return v
	}
	return s.cfg.MaxErrorScale
}

// Score compares every live frame with the ideal frame the alignment maps it
// to. Frames are normalized first, so the result does not depend on where the
// subject stands or how large they appear.
//
// When no pair shares a confident landmark the returned profile has quality 0
// and the error is core.ErrNoComparableLandmarks.
func (s *Scorer) Score(live, ideal core.PoseSequence, m core.AlignmentMap) (core.ErrorProfile, error) {
	scale := s.ScaleFor(live.Action)
	nl := pose.NormalizeSequence(live, s.cfg.Threshold)
	ni := pose.NormalizeSequence(ideal, s.cfg.Threshold)

	profile := core.ErrorProfile{
		Frames:        make([]core.FrameError, 0, m.Len()),
		MaxErrorScale: scale,
	}

	var sum float64
	for i, j := range m.Targets {
		fe := core.FrameError{
			LiveIndex:  i,
			IdealIndex: j,
			Progress:   align.Progress(i, m.Len()),
		}
		if i < len(nl.Frames) && nl.OK[i] && j != core.Unmatched && j < len(ni.Frames) && ni.OK[j] {
			d, n := Compare(nl.Frames[i], ni.Frames[j], s.cfg.Threshold)
			if n > 0 {
				fe.Error = d
				fe.Quality = Quality(d, scale)
				fe.Comparable = true
				fe.Landmarks = n
				sum += d
				profile.Compared++
			}
		}
		profile.Frames = append(profile.Frames, fe)
	}

	if profile.Compared == 0 {
		return profile, core.ErrNoComparableLandmarks
	}
	profile.MeanError = sum / float64(profile.Compared)
	profile.Quality = Quality(profile.MeanError, scale)
	return profile, nil
}

// Compare returns the mean Euclidean distance over landmarks that are
// confident and finite in both frames, and how many landmarks took part.
func Compare(a, b core.PoseFrame, threshold float64) (float64, int) {
	var sum float64
	var n int
	for _, la := range a.Landmarks {
		if la.Confidence < threshold {
			continue
		}
		lb, ok := b.Confident(la.Joint, threshold)
		if !ok {
			continue
		}
		d := la.Position.Distance(lb.Position)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// Quality maps an error to [0,1]: 1 - err/scale, clamped.
func Quality(err, scale float64) float64 {
	if scale <= 0 || math.IsNaN(err) {
		return 0
	}
	q := 1 - err/scale
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}
