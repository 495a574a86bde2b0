package crawler

import (
	"context"
	"time"
)

// JobStore persists audit jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	// NextPendingJob returns the oldest pending job or ErrNotFound.
	NextPendingJob(ctx context.Context) (Job, error)
}

// PageStore persists fetched pages, unique per (job, dedup key).
type PageStore interface {
	SavePage(ctx context.Context, page Page) error
	PageExists(ctx context.Context, jobID, dedupKey string) (bool, error)
	ListPages(ctx context.Context, jobID string) ([]Page, error)
}

// ArtifactStore keeps per-job JSON artifacts (evidence layer, audit document).
type ArtifactStore interface {
	PutArtifact(ctx context.Context, jobID, kind string, data []byte) error
	GetArtifact(ctx context.Context, jobID, kind string) ([]byte, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus extracted fields.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResult, error)
}

// Renderer executes a page in a headless browser.
type Renderer interface {
	Render(ctx context.Context, url string) (RenderedPage, error)
}

// RenderDetector decides whether a static homepage needs a headless re-render.
type RenderDetector interface {
	ShouldPromote(probe RenderProbe) bool
}

// RobotsPolicy reports whether a domain forbids crawling outright.
type RobotsPolicy interface {
	Check(ctx context.Context, domain string) (RobotsResult, error)
}

// SitemapSource discovers sitemap-declared URLs for a domain.
type SitemapSource interface {
	Discover(ctx context.Context, domain string) SitemapResult
}

// Throttle enforces a fixed pause between the fetches of one domain crawl.
// Done is called when a fetch ends and Forget when the crawl is over.
type Throttle interface {
	Wait(ctx context.Context, domain string) error
	Done(domain string)
	Forget(domain string)
}

// Hasher computes digests for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
