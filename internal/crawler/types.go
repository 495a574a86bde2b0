package crawler

import (
	"time"
)

// JobStatus represents the lifecycle state of an audit job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending            JobStatus = "pending"
	JobStatusCrawling           JobStatus = "crawling"
	JobStatusExtractingEvidence JobStatus = "extracting_evidence"
	JobStatusGeneratingAudit    JobStatus = "generating_audit"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusFailed             JobStatus = "failed"
)

// Terminal reports whether no further work happens for the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one audit request: a target domain, optional competitors and a locale.
type Job struct {
	ID                string         `json:"id"`
	TargetDomain      string         `json:"target_domain"`
	CompetitorDomains []string       `json:"competitor_domains"`
	Locale            string         `json:"locale"`
	MaxPagesTarget    int            `json:"max_pages_target,omitempty"`
	MaxPagesComp      int            `json:"max_pages_competitor,omitempty"`
	Status            JobStatus      `json:"status"`
	Stage             string         `json:"current_stage,omitempty"`
	Progress          int            `json:"progress_percent"`
	Error             string         `json:"error_message,omitempty"`
	Note              string         `json:"note,omitempty"`
	TotalPages        int            `json:"total_pages_scraped"`
	PriorityURLs      []string       `json:"priority_urls,omitempty"`
	Debug             *DebugSnapshot `json:"scrape_debug,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
}

// Page is a successfully fetched HTML document. Pages are immutable once stored.
type Page struct {
	JobID           string    `json:"job_id"`
	URL             string    `json:"url"`
	NormalizedURL   string    `json:"normalized_url"`
	Domain          string    `json:"domain"`
	IsTarget        bool      `json:"is_target"`
	HTML            string    `json:"-"`
	Text            string    `json:"text_content"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	StatusCode      int       `json:"status_code"`
	ContentType     string    `json:"content_type"`
	WordCount       int       `json:"word_count"`
	DedupKey        string    `json:"url_hash"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL      string
	Homepage bool
}

// FetchResult is the raw outcome of a successful fetch plus its extracted fields.
type FetchResult struct {
	URL             string
	FinalURL        string
	StatusCode      int
	ContentType     string
	HTML            string
	Text            string
	Title           string
	MetaDescription string
	Links           []string
	Duration        time.Duration
	Rendered        bool
}

// RobotsResult summarizes the robots.txt lookup for a domain. Indeterminate
// lookups are treated as permissive.
type RobotsResult struct {
	Status        int
	DisallowsAll  bool
	Indeterminate bool
	Reason        string
}

// RenderProbe is what the headless detector sees of a static fetch.
type RenderProbe struct {
	StatusCode int
	HTML       []byte
	WordCount  int
}

// RenderedPage is the DOM serialized by a headless browser after scripts ran.
type RenderedPage struct {
	URL        string
	StatusCode int
	HTML       string
}

// SitemapResult lists the URLs declared by the first sitemap that produced any.
type SitemapResult struct {
	Found    bool
	URL      string
	URLs     []string
	Total    int
	Errors   []string
	Duration time.Duration
}

// DomainResult is the outcome of crawling one domain.
type DomainResult struct {
	Domain       string
	PagesScraped int
	PriorityURLs []string
	Debug        DebugSnapshot
}

// JobResult aggregates the target and competitor crawls of one job.
type JobResult struct {
	TotalPages   int
	PriorityURLs []string
	TargetDebug  DebugSnapshot
	Competitors  []DomainResult
}

// Artifact kinds stored per job in the ArtifactStore.
const (
	ArtifactEvidence = "evidence"
	ArtifactDocument = "document"
)
