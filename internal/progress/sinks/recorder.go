package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
)

const defaultPerJob = 200

// Recorder keeps the most recent events of each job.
type Recorder struct {
	mu     sync.RWMutex
	perJob int
	events map[string][]progress.Event
}

// NewRecorder keeps at most perJob events per job (default 200).
func NewRecorder(perJob int) *Recorder {
	if perJob <= 0 {
		perJob = defaultPerJob
	}
	return &Recorder{perJob: perJob, events: make(map[string][]progress.Event)}
}

// Consume implements progress.Sink.
func (r *Recorder) Consume(_ context.Context, batch []progress.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, evt := range batch {
		list := append(r.events[evt.JobID], evt)
		if over := len(list) - r.perJob; over > 0 {
			list = append([]progress.Event(nil), list[over:]...)
		}
		r.events[evt.JobID] = list
	}
	return nil
}

// Events returns a copy of the recorded events for the job, oldest first.
func (r *Recorder) Events(jobID string) []progress.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]progress.Event{}, r.events[jobID]...)
}

// Close implements progress.Sink.
func (r *Recorder) Close(context.Context) error {
	return nil
}
