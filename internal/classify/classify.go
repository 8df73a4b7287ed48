// Package classify labels a recorded sequence with an action from its
// sport's vocabulary.
package classify

import (
	"errors"

	"github.com/promotion/posecore/internal/align"
	"github.com/promotion/posecore/internal/geo"
	"github.com/promotion/posecore/internal/pose"
	"github.com/promotion/posecore/internal/score"
	"github.com/promotion/posecore/pkg/core"
)

// Classifier labels a frozen live sequence. Implementations never fail: when
// they cannot decide they return core.Unknown().
type Classifier interface {
	Classify(in Input) core.ClassificationResult
}

// ReferenceSource looks up loaded ideal sequences.
type ReferenceSource interface {
	Ideal(sport, action string) (core.PoseSequence, bool)
}

// Input is what a classifier sees of a finished recording.
type Input struct {
	Sequence core.PoseSequence
	// Profile is the sequence scored against the selected action's ideal, if any.
	Profile *core.ErrorProfile
}

// Config holds the template classifier thresholds.
type Config struct {
	MinFrames             int
	MinConfidence         float64
	MinLandmarkConfidence float64
	// MinMotion is the wrist travel, in torso lengths, below which the
	// subject is considered to have stood still.
	MinMotion float64
}

// TemplateClassifier scores the sequence against every loaded reference of
// its sport and picks the best match.
type TemplateClassifier struct {
	cfg    Config
	refs   ReferenceSource
	scorer *score.Scorer
}

// NewTemplateClassifier creates a TemplateClassifier.
func NewTemplateClassifier(cfg Config, refs ReferenceSource, scorer *score.Scorer) *TemplateClassifier {
	if cfg.MinFrames < align.MinFrames {
		cfg.MinFrames = align.MinFrames
	}
	return &TemplateClassifier{cfg: cfg, refs: refs, scorer: scorer}
}

func (c *TemplateClassifier) Classify(in Input) core.ClassificationResult {
	seq := in.Sequence
	if seq.Len() < c.cfg.MinFrames {
		return core.Unknown()
	}
	if MeanCoreConfidence(seq) < c.cfg.MinLandmarkConfidence {
		return core.Unknown()
	}
	if c.motion(seq) < c.cfg.MinMotion {
		return core.Unknown()
	}

	best := core.Unknown()
	for _, action := range c.candidates(seq) {
		q, ok := c.quality(seq, action, in.Profile)
		if !ok {
			continue
		}
		if q > best.Confidence {
			best = core.ClassificationResult{Label: core.ActionLabel(action), Confidence: q}
		}
	}
	if best.Confidence < c.cfg.MinConfidence {
		return core.Unknown()
	}
	return best
}

// candidates returns the selected action first, then the rest of the sport.
func (c *TemplateClassifier) candidates(seq core.PoseSequence) []string {
	out := []string{seq.Action}
	sport, ok := core.LookupSport(seq.Sport)
	if !ok {
		return out
	}
	selected := core.ActionLabel(seq.Action)
	for _, a := range sport.Actions {
		if core.ActionLabel(a) != selected {
			out = append(out, a)
		}
	}
	return out
}

func (c *TemplateClassifier) quality(seq core.PoseSequence, action string, profile *core.ErrorProfile) (float64, bool) {
	if profile != nil && core.ActionLabel(action) == core.ActionLabel(seq.Action) {
		return profile.Quality, true
	}
	if c.refs == nil || c.scorer == nil {
		return 0, false
	}
	ideal, ok := c.refs.Ideal(seq.Sport, action)
	if !ok {
		return 0, false
	}
	m, err := align.Align(seq.Len(), ideal.Len())
	if err != nil {
		return 0, false
	}
	p, err := c.scorer.Score(seq, ideal, m)
	if err != nil && !errors.Is(err, core.ErrNoComparableLandmarks) {
		return 0, false
	}
	return p.Quality, true
}

func (c *TemplateClassifier) motion(seq core.PoseSequence) float64 {
	ns := pose.NormalizeSequence(seq, c.cfg.MinLandmarkConfidence)
	frames := make([]core.PoseFrame, 0, len(ns.Frames))
	for i, f := range ns.Frames {
		if ns.OK[i] {
			frames = append(frames, f)
		}
	}
	return geo.PathLength(frames, c.cfg.MinLandmarkConfidence, core.LeftWrist, core.RightWrist)
}

// MeanCoreConfidence averages the confidence of the core joints over every
// frame. Missing joints count as zero.
func MeanCoreConfidence(seq core.PoseSequence) float64 {
	if seq.Len() == 0 {
		return 0
	}
	var sum float64
	for _, f := range seq.Frames {
		for _, j := range core.CoreJoints {
			if l, ok := f.Landmark(j); ok {
				sum += l.Confidence
			}
		}
	}
	return sum / float64(seq.Len()*len(core.CoreJoints))
}
