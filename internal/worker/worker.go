package worker

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/promotion/posecore/internal/pose"
	"github.com/promotion/posecore/internal/sequence"
)

const instrumentationName = "github.com/promotion/posecore/internal/worker"

// IncompletePolicy decides what happens to a frame missing core joints.
type IncompletePolicy string

const (
	// PolicyDrop discards the frame.
	PolicyDrop IncompletePolicy = "drop"
	// PolicySubstitute repeats the previous frame's landmarks at the new timestamp.
	PolicySubstitute IncompletePolicy = "substitute"
)

// ParsePolicy maps a config value to a policy. Unknown values fall back to PolicyDrop.
func ParsePolicy(s string) IncompletePolicy {
	if IncompletePolicy(s) == PolicySubstitute {
		return PolicySubstitute
	}
	return PolicyDrop
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Store   *sequence.Store
	Builder *pose.Builder
	Policy  IncompletePolicy
	Logger  *slog.Logger
}

// Manager owns the capture handlers that feed the live sequence.
type Manager struct {
	deps Dependencies

	appended    metric.Int64Counter
	dropped     metric.Int64Counter
	substituted metric.Int64Counter
	stale       metric.Int64Counter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Policy == "" {
		deps.Policy = PolicyDrop
	}
	m := &Manager{deps: deps}

	meter := otel.Meter(instrumentationName)
	var err error
	if m.appended, err = meter.Int64Counter("capture.frames.appended",
		metric.WithDescription("Frames appended to the live sequence")); err != nil {
		return nil, fmt.Errorf("creating appended counter: %w", err)
	}
	if m.dropped, err = meter.Int64Counter("capture.frames.dropped",
		metric.WithDescription("Frames rejected during capture")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if m.substituted, err = meter.Int64Counter("capture.frames.substituted",
		metric.WithDescription("Incomplete frames replaced by the previous pose")); err != nil {
		return nil, fmt.Errorf("creating substituted counter: %w", err)
	}
	if m.stale, err = meter.Int64Counter("capture.frames.stale",
		metric.WithDescription("Frames that arrived after their session ended")); err != nil {
		return nil, fmt.Errorf("creating stale counter: %w", err)
	}
	return m, nil
}

// Policy returns the incomplete-frame policy in effect.
func (m *Manager) Policy() IncompletePolicy {
	return m.deps.Policy
}

func (m *Manager) count(c metric.Int64Counter) {
	c.Add(context.Background(), 1)
}
