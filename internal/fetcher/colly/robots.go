package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/metrics"
)

const (
	robotsFallbackReasonTLSHandshake = "TLS handshake timeout"
	robotsMaxBytes                   = 512 * 1024
	robotsMaxRedirects               = 5
	defaultAuxiliaryTimeout          = 5 * time.Second
)

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// Robots implements crawler.RobotsPolicy. Only a blanket disallow for the
// wildcard agent counts; per-path rules are ignored.
type Robots struct {
	userAgent string
	timeout   time.Duration
	gate      *crawler.SafetyGate
	client    *http.Client
	backoff   []time.Duration
	logger    *zap.Logger
}

// NewRobots builds a robots.txt checker. Every redirect hop is re-checked
// against gate, like the page fetcher does.
func NewRobots(userAgent string, timeout time.Duration, gate *crawler.SafetyGate, logger *zap.Logger) *Robots {
	if timeout <= 0 {
		timeout = defaultAuxiliaryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Robots{
		userAgent: userAgent,
		timeout:   timeout,
		gate:      gate,
		backoff:   robotsRetryBackoff,
		logger:    logger.Named("robots"),
	}
	r.client = &http.Client{Transport: newHTTPTransport(), CheckRedirect: r.checkRedirect}
	return r
}

func (r *Robots) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= robotsMaxRedirects {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if err := r.gate.CheckURL(req.URL); err != nil {
		return fmt.Errorf("robots redirect target: %w", err)
	}
	return nil
}

// Check fetches https://<domain>/robots.txt. Non-200 responses impose no
// restriction. A TLS handshake that keeps stalling after the retries yields
// an indeterminate result instead of an error.
func (r *Robots) Check(ctx context.Context, domain string) (crawler.RobotsResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.fetch(ctx, "https://"+domain+"/robots.txt")
	if errors.Is(err, errRobotsStalled) {
		metrics.ObserveFetch("robots", "indeterminate", domain, 0)
		r.logger.Warn("robots.txt indeterminate", zap.String("domain", domain), zap.String("reason", robotsFallbackReasonTLSHandshake))
		return crawler.RobotsResult{Indeterminate: true, Reason: robotsFallbackReasonTLSHandshake}, nil
	}
	if err != nil {
		return crawler.RobotsResult{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	result := crawler.RobotsResult{Status: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return result, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return result, fmt.Errorf("read robots.txt: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return result, fmt.Errorf("parse robots.txt: %w", err)
	}
	result.DisallowsAll = !data.FindGroup("*").Test("/")
	return result, nil
}

var errRobotsStalled = errors.New("robots.txt handshake kept timing out")

// fetch retries only handshake stalls; anything else is returned as is.
func (r *Robots) fetch(ctx context.Context, robotsURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build robots request: %w", err)
		}
		if r.userAgent != "" {
			req.Header.Set("User-Agent", r.userAgent)
		}
		resp, err := r.client.Do(req)
		if err == nil {
			return resp, nil
		}
		if !isTransientTLSError(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("fetch robots.txt: %w", err)
		}
		if attempt >= len(r.backoff) {
			return nil, errRobotsStalled
		}
		if err := sleepWithContext(ctx, r.backoff[attempt]); err != nil {
			return nil, err
		}
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// isTransientTLSError matches handshake stalls, not certificate failures or
// gate rejections.
func isTransientTLSError(err error) bool {
	var safety *crawler.SafetyError
	if err == nil || errors.As(err, &safety) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout") ||
		strings.Contains(err.Error(), "TLS handshake timeout")
}
