package worker

import (
	"time"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

// Event is the message published when a job reaches a terminal status.
type Event struct {
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	TargetDomain string     `json:"target_domain"`
	TotalPages   int        `json:"total_pages_scraped"`
	DocumentURI  string     `json:"document_uri,omitempty"`
	Error        string     `json:"error_message,omitempty"`
	Note         string     `json:"note,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func newEvent(job crawler.Job, documentURI string) Event {
	return Event{
		JobID:        job.ID,
		Status:       string(job.Status),
		TargetDomain: job.TargetDomain,
		TotalPages:   job.TotalPages,
		DocumentURI:  documentURI,
		Error:        job.Error,
		Note:         job.Note,
		CompletedAt:  job.CompletedAt,
	}
}

// Attributes exposes routing keys as Pub/Sub message attributes.
func (e Event) Attributes() map[string]string {
	return map[string]string{"job_id": e.JobID, "status": e.Status}
}
