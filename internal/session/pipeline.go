package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/promotion/posecore/internal/align"
	"github.com/promotion/posecore/internal/classify"
	"github.com/promotion/posecore/internal/score"
	"github.com/promotion/posecore/pkg/core"
)

// Pipeline aligns, scores and classifies a frozen recording.
type Pipeline struct {
	scorer     *score.Scorer
	classifier classify.Classifier
	minFrames  int
	log        *slog.Logger
}

// NewPipeline creates a Pipeline. minFrames below the aligner's minimum is raised to it.
func NewPipeline(scorer *score.Scorer, classifier classify.Classifier, minFrames int, logger *slog.Logger) *Pipeline {
	if minFrames < align.MinFrames {
		minFrames = align.MinFrames
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{scorer: scorer, classifier: classifier, minFrames: minFrames, log: logger}
}

// Outcome is what a successful run produces.
type Outcome struct {
	Profile        core.ErrorProfile
	Classification core.ClassificationResult
}

// Run compares live with ideal. Either every stage completes, or an error
// is returned and nothing is produced.
//
// A recording with no landmark comparable to the ideal is not a failure: it
// yields a zero-quality profile and an unknown classification.
func (p *Pipeline) Run(ctx context.Context, live core.PoseSequence, ideal *core.PoseSequence) (Outcome, error) {
	if ideal == nil {
		return Outcome{}, fmt.Errorf("%s: %w", core.ReferenceKey(live.Sport, live.Action), core.ErrReferenceUnavailable)
	}
	if live.Len() < p.minFrames {
		return Outcome{}, &core.InsufficientFramesError{Which: "live", Have: live.Len(), Need: p.minFrames}
	}

	m, err := align.Align(live.Len(), ideal.Len())
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to align: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	profile, err := p.scorer.Score(live, *ideal, m)
	if errors.Is(err, core.ErrNoComparableLandmarks) {
		p.log.Warn("No comparable landmarks between recording and ideal",
			"sport", live.Sport, "action", live.Action, "frames", live.Len())
		return Outcome{Profile: profile, Classification: core.Unknown()}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to score: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	result := p.classifier.Classify(classify.Input{Sequence: live, Profile: &profile})
	p.log.Debug("Scored session",
		"sport", live.Sport,
		"action", live.Action,
		"quality", profile.Quality,
		"meanError", profile.MeanError,
		"label", result.Label,
		"confidence", result.Confidence)
	return Outcome{Profile: profile, Classification: result}, nil
}
