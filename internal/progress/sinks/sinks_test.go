package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
)

func event(job string, kind progress.Kind, pct int) progress.Event {
	return progress.Event{JobID: job, TS: time.Now(), Kind: kind, Percent: pct}
}

func TestRecorderKeepsRecentEvents(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(2)
	batch := []progress.Event{
		event("job-1", progress.KindJobStart, 0),
		event("job-1", progress.KindStage, 10),
		event("job-2", progress.KindJobStart, 0),
		event("job-1", progress.KindStage, 40),
	}
	require.NoError(t, rec.Consume(context.Background(), batch))

	got := rec.Events("job-1")
	require.Len(t, got, 2)
	require.Equal(t, 10, got[0].Percent)
	require.Equal(t, 40, got[1].Percent)
	require.Len(t, rec.Events("job-2"), 1)
	require.NotNil(t, rec.Events("missing"))
	require.Empty(t, rec.Events("missing"))

	got[0].Percent = 99
	require.Equal(t, 10, rec.Events("job-1")[0].Percent)
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	failed := event("job-1", progress.KindJobError, 60)
	failed.Note = "[generating_audit] " + errors.New("boom").Error()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		event("job-1", progress.KindJobStart, 0),
		failed,
	}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
	require.Equal(t, "[generating_audit] boom", entries[1].ContextMap()["note"])
}

func TestMetricsSink(t *testing.T) {
	t.Parallel()

	var sink MetricsSink
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{event("job-1", progress.KindJobDone, 100)}))
	require.NoError(t, sink.Close(context.Background()))
}
