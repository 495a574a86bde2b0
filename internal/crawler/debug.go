package crawler

import (
	"time"
)

// Timings holds the millisecond timings captured during a domain crawl.
type Timings struct {
	HomeFetchMS int64 `json:"home_fetch_ms"`
	SitemapMS   int64 `json:"sitemap_ms"`
	TotalMS     int64 `json:"total_ms"`
}

// DebugSnapshot is the immutable diagnostic record of one domain crawl.
type DebugSnapshot struct {
	InputURL                   string        `json:"input_url"`
	NormalizedURL              string        `json:"normalized_url"`
	FinalURL                   string        `json:"final_url,omitempty"`
	HomepageStatusCode         int           `json:"homepage_status_code,omitempty"`
	HomepageFetchError         string        `json:"homepage_fetch_error,omitempty"`
	HomepageRendered           bool          `json:"homepage_rendered,omitempty"`
	RobotsTxtStatus            string        `json:"robots_txt_status,omitempty"`
	RobotsDisallowsAll         bool          `json:"robots_disallows_all"`
	SitemapFound               bool          `json:"sitemap_found"`
	SitemapURLsCount           int           `json:"sitemap_urls_count"`
	LinksExtractedFromHomepage int           `json:"links_extracted_from_homepage"`
	BlockedReason              BlockedReason `json:"blocked_reason,omitempty"`
	PagesAttempted             int           `json:"pages_attempted"`
	PagesSucceeded             int           `json:"pages_success"`
	PagesFailed                int           `json:"pages_failed"`
	Timings                    Timings       `json:"timings"`
	Errors                     []string      `json:"errors"`
}

// Recorder accumulates diagnostics for a single domain crawl. It is owned by
// one crawl and is not safe for concurrent use.
type Recorder struct {
	snap      DebugSnapshot
	maxErrors int
	started   time.Time
	clock     Clock
}

// NewRecorder starts a recorder for the given user input. maxErrors <= 0 keeps 20.
func NewRecorder(inputURL string, maxErrors int, clock Clock) *Recorder {
	if maxErrors <= 0 {
		maxErrors = 20
	}
	return &Recorder{
		snap:      DebugSnapshot{InputURL: inputURL, Errors: []string{}},
		maxErrors: maxErrors,
		started:   clock.Now(),
		clock:     clock,
	}
}

// SetNormalizedURL stores the start URL derived from the input.
func (r *Recorder) SetNormalizedURL(u string) { r.snap.NormalizedURL = u }

// Attempt counts a fetch attempt.
func (r *Recorder) Attempt() { r.snap.PagesAttempted++ }

// Succeed counts a stored page.
func (r *Recorder) Succeed() { r.snap.PagesSucceeded++ }

// Fail counts a failed fetch.
func (r *Recorder) Fail() { r.snap.PagesFailed++ }

// AddError appends a diagnostic message while under the cap.
func (r *Recorder) AddError(msg string) {
	if len(r.snap.Errors) >= r.maxErrors {
		return
	}
	r.snap.Errors = append(r.snap.Errors, msg)
}

// Block records the blocking reason; the first reason wins.
func (r *Recorder) Block(reason BlockedReason) {
	if r.snap.BlockedReason == BlockedNone {
		r.snap.BlockedReason = reason
	}
}

// BlockedReason returns the current classification.
func (r *Recorder) BlockedReason() BlockedReason { return r.snap.BlockedReason }

// RecordHomepage captures the homepage response (status may be 0 on transport failure).
func (r *Recorder) RecordHomepage(status int, finalURL string, elapsed time.Duration, fetchErr string) {
	r.snap.HomepageStatusCode = status
	if finalURL != "" {
		r.snap.FinalURL = finalURL
	}
	r.snap.HomepageFetchError = fetchErr
	r.snap.Timings.HomeFetchMS = elapsed.Milliseconds()
}

// MarkRendered flags that the homepage body came from the headless renderer.
func (r *Recorder) MarkRendered() { r.snap.HomepageRendered = true }

// RecordRobots captures the robots.txt status ("200", "404", "error").
func (r *Recorder) RecordRobots(status string, disallowsAll bool) {
	r.snap.RobotsTxtStatus = status
	r.snap.RobotsDisallowsAll = disallowsAll
}

// RecordSitemap captures sitemap discovery results.
func (r *Recorder) RecordSitemap(found bool, total int, elapsed time.Duration) {
	r.snap.SitemapFound = found
	r.snap.SitemapURLsCount = total
	r.snap.Timings.SitemapMS = elapsed.Milliseconds()
}

// RecordHomepageLinks stores the number of links found on the homepage.
func (r *Recorder) RecordHomepageLinks(n int) { r.snap.LinksExtractedFromHomepage = n }

// Snapshot finalizes total time and returns an independent copy.
func (r *Recorder) Snapshot() DebugSnapshot {
	r.snap.Timings.TotalMS = r.clock.Now().Sub(r.started).Milliseconds()
	out := r.snap
	out.Errors = append([]string{}, r.snap.Errors...)
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
