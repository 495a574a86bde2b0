// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	pagesStoredTotal           *prometheus.CounterVec
	crawlBlockedTotal          *prometheus.CounterVec
	generationAttemptsTotal    *prometheus.CounterVec
	jobsTotal                  *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	activeJobs                 prometheus.Gauge
	progressEventsTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call repeatedly; every
// Observe helper calls it first.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_fetches_total",
				Help: "Page fetches, labeled by kind (homepage/page/robots/sitemap) and outcome.",
			},
			[]string{"kind", "outcome"},
		)
		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_fetch_bytes_total",
				Help: "Bytes of HTML fetched, labeled by site.",
			},
			[]string{"site"},
		)
		pagesStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_pages_stored_total",
				Help: "Pages persisted, labeled by role (target/competitor).",
			},
			[]string{"role"},
		)
		crawlBlockedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_crawl_blocked_total",
				Help: "Domain crawls that produced no pages, labeled by blocked reason.",
			},
			[]string{"reason"},
		)
		generationAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_generation_attempts_total",
				Help: "Structured generation attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_jobs_total",
				Help: "Jobs finished, labeled by status.",
			},
			[]string{"status"},
		)
		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_stage_duration_seconds",
				Help:    "Duration of job stages.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		)
		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_active_jobs",
				Help: "Jobs currently being processed by this worker.",
			},
		)
		progressEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_progress_events_total",
				Help: "Progress events emitted, labeled by stage.",
			},
			[]string{"stage"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch counts a fetch outcome and the bytes it returned.
func ObserveFetch(kind, outcome, site string, bytesFetched int) {
	Init()
	fetchesTotal.WithLabelValues(kind, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObservePageStored counts a persisted page.
func ObservePageStored(target bool) {
	Init()
	role := "competitor"
	if target {
		role = "target"
	}
	pagesStoredTotal.WithLabelValues(role).Inc()
}

// ObserveBlocked counts a domain crawl that stopped early.
func ObserveBlocked(reason string) {
	Init()
	crawlBlockedTotal.WithLabelValues(reason).Inc()
}

// ObserveGenerationAttempt counts one generation attempt outcome
// (accepted, truncated, parse_error, schema_error, transport_error).
func ObserveGenerationAttempt(outcome string) {
	Init()
	generationAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long a job stage took.
func ObserveStage(stage string, d time.Duration) {
	Init()
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveProgressEvent counts an emitted progress event.
func ObserveProgressEvent(stage string) {
	Init()
	progressEventsTotal.WithLabelValues(stage).Inc()
}

// IncActiveJobs increments the active jobs gauge.
func IncActiveJobs() {
	Init()
	activeJobs.Inc()
}

// DecActiveJobs decrements the active jobs gauge.
func DecActiveJobs() {
	Init()
	activeJobs.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
