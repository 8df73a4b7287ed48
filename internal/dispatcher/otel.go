package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/promotion/posecore/internal/dispatcher"

// instruments are created on the global meter, a no-op until a provider is installed.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram
}

func newInstruments(queueLens func() map[string]int) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	in := &instruments{}

	var err error
	if in.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered handler queue")); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range queueLens() {
			o.ObserveInt64(in.queueSize, int64(n), metric.WithAttributes(commandAttr(cmd)))
		}
		return nil
	}, in.queueSize); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	if in.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Buffered events handled")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events rejected by a full non-blocking queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if in.failed, err = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Buffered events whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if in.latency, err = m.Float64Histogram("dispatcher.handler.duration",
		metric.WithDescription("Time spent in a buffered handler"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}
	return in, nil
}

func commandAttr(command string) attribute.KeyValue {
	return attribute.String("command", command)
}

func (in *instruments) handled(command string, took time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(commandAttr(command))
	in.processed.Add(ctx, 1, attrs)
	in.latency.Record(ctx, float64(took)/float64(time.Millisecond), attrs)
	if err != nil {
		in.failed.Add(ctx, 1, attrs)
	}
}

func (in *instruments) rejected(command string) {
	in.dropped.Add(context.Background(), 1, metric.WithAttributes(commandAttr(command)))
}
