package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobID),
			zap.String("kind", string(evt.Kind)),
			zap.Int("progress_percent", evt.Percent),
		}
		if evt.Stage != "" {
			fields = append(fields, zap.String("stage", evt.Stage))
		}
		if evt.Domain != "" {
			fields = append(fields, zap.String("domain", evt.Domain), zap.Int("pages", evt.Pages))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Kind == progress.KindJobError {
			s.logger.Warn("progress event", fields...)
			continue
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
