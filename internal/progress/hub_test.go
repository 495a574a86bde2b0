package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFlushesAtBatchSize(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, FlushInterval: time.Hour}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(KindJobStart))
	hub.Emit(sampleEvent(KindJobStart))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestHubFlushesOnInterval(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 10, FlushInterval: 10 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(KindJobStart))
	require.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubFlushesOnClose(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, FlushInterval: time.Hour}, sink)
	hub.Emit(sampleEvent(KindJobDone))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Equal(t, 1, sink.Closes(), "sinks are closed once")

	hub.Emit(sampleEvent(KindJobDone))
	require.Len(t, sink.Batches(), 1, "events after Close are ignored")
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	hub.Emit(sampleEvent(KindJobStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.Dropped())

	hub.Emit(Event{})
	require.Equal(t, int64(1), hub.Dropped(), "invalid events are discarded, not dropped")
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleEvent(KindStage).Validate())
	bad := []Event{
		{TS: time.Now(), Kind: KindJobStart},
		{JobID: "j", Kind: KindJobStart},
		{JobID: "j", TS: time.Now(), Kind: "NOPE"},
		{JobID: "j", TS: time.Now(), Kind: KindStage},
		{JobID: "j", TS: time.Now(), Kind: KindDomainCrawled},
		{JobID: "j", TS: time.Now(), Kind: KindJobDone, Percent: 101},
		{JobID: "j", TS: time.Now(), Kind: KindJobDone, Dur: -1},
	}
	for _, evt := range bad {
		require.Error(t, evt.Validate(), "%+v", evt)
	}
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closes  int
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *stubSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func sampleEvent(kind Kind) Event {
	return Event{JobID: "job-1", TS: time.Now(), Kind: kind, Stage: "crawling", Domain: "acme.com"}
}
