package sinks

import (
	"context"

	"github.com/JakeFAU/ai-visibility-audit/internal/metrics"
	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
)

// MetricsSink counts events by kind on the shared Prometheus registry.
type MetricsSink struct{}

// Consume implements progress.Sink.
func (MetricsSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		metrics.ObserveProgressEvent(string(evt.Kind))
	}
	return nil
}

// Close implements progress.Sink.
func (MetricsSink) Close(context.Context) error {
	return nil
}
