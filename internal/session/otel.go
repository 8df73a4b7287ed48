package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/promotion/posecore/internal/session"

// Metrics counts session outcomes on the global OTel meter.
type Metrics struct {
	scored    metric.Int64Counter
	failed    metric.Int64Counter
	discarded metric.Int64Counter
	quality   metric.Float64Histogram
}

// NewMetrics registers the session instruments.
// Uses the global OTel meter (no-op if not configured).
func NewMetrics() (*Metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out Metrics
		err error
	)

	out.scored, err = m.Int64Counter("session.scored",
		metric.WithDescription("Sessions scored and delivered"))
	if err != nil {
		return nil, fmt.Errorf("creating scored counter: %w", err)
	}
	out.failed, err = m.Int64Counter("session.failed",
		metric.WithDescription("Sessions that failed to score"))
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	out.discarded, err = m.Int64Counter("session.discarded",
		metric.WithDescription("Results dropped because their session was superseded"))
	if err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}
	out.quality, err = m.Float64Histogram("session.quality",
		metric.WithDescription("Aggregate quality of scored sessions"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1))
	if err != nil {
		return nil, fmt.Errorf("creating quality histogram: %w", err)
	}
	return &out, nil
}

func (m *Metrics) Scored(ctx context.Context, sport, action string, quality float64) {
	attrs := metric.WithAttributes(attribute.String("sport", sport), attribute.String("action", action))
	m.scored.Add(ctx, 1, attrs)
	m.quality.Record(ctx, quality, attrs)
}

func (m *Metrics) Failed(ctx context.Context, sport, action string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("sport", sport), attribute.String("action", action)))
}

func (m *Metrics) Discarded(ctx context.Context) {
	m.discarded.Add(ctx, 1)
}
