package progress

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the milestone an Event represents.
type Kind string

// Supported event kinds.
const (
	KindJobStart      Kind = "JOB_START"
	KindStage         Kind = "STAGE"
	KindDomainCrawled Kind = "DOMAIN_CRAWLED"
	KindJobDone       Kind = "JOB_DONE"
	KindJobError      Kind = "JOB_ERROR"
)

// Event is one milestone of an audit job.
type Event struct {
	JobID   string        `json:"job_id"`
	TS      time.Time     `json:"ts"`
	Kind    Kind          `json:"kind"`
	Stage   string        `json:"stage,omitempty"`
	Percent int           `json:"progress_percent"`
	Domain  string        `json:"domain,omitempty"`
	Pages   int           `json:"pages,omitempty"`
	Dur     time.Duration `json:"duration_ns,omitempty"`
	// Note carries low-volume context such as error text or a blocked reason.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindJobStart, KindJobDone, KindJobError:
	case KindStage:
		if e.Stage == "" {
			return errors.New("stage event requires stage")
		}
	case KindDomainCrawled:
		if e.Domain == "" {
			return errors.New("domain event requires domain")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Percent < 0 || e.Percent > 100 {
		return fmt.Errorf("percent %d out of range", e.Percent)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
