// Package collyfetcher implements the crawler's page, robots and sitemap
// lookups on top of gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultHomepageTimeout = 15 * time.Second
	defaultMaxBodyBytes    = 5 * 1024 * 1024
	defaultMaxRedirects    = 5
)

// Config controls collector behavior.
type Config struct {
	UserAgent       string
	RequestTimeout  time.Duration
	HomepageTimeout time.Duration
	MaxBodyBytes    int
	MaxRedirects    int
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.HomepageTimeout <= 0 {
		c.HomepageTimeout = defaultHomepageTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	return c
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	gate          *crawler.SafetyGate
	baseCollector *colly.Collector
	renderer      crawler.Renderer
	detector      crawler.RenderDetector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchState collects what the collector callbacks observed for one visit.
type fetchState struct {
	status       int
	contentType  string
	finalURL     string
	body         []byte
	rejectedType string
	declaredSize int
	err          error
}

// New builds a Fetcher. Redirect targets are re-checked against gate.
func New(cfg Config, gate *crawler.SafetyGate, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		cfg:    cfg,
		gate:   gate,
		logger: logger.Named("fetcher"),
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	// One byte past the limit lets an oversized body be told apart from one
	// that is exactly at the limit.
	c.MaxBodySize = cfg.MaxBodyBytes + 1
	c.UserAgent = cfg.UserAgent
	// Clones share the backend client, so transport, timeout and redirect
	// policy are configured once here.
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(max(cfg.HomepageTimeout, cfg.RequestTimeout))
	c.SetRedirectHandler(f.checkRedirect)
	f.baseCollector = c
	return f
}

// WithRenderer enables headless re-rendering of thin homepages.
func (f *Fetcher) WithRenderer(renderer crawler.Renderer, detector crawler.RenderDetector) *Fetcher {
	f.renderer = renderer
	f.detector = detector
	return f
}

// Fetch executes a single HTTP GET using Colly and extracts the page fields.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResult, error) {
	timeout := f.cfg.RequestTimeout
	if request.Homepage {
		timeout = f.cfg.HomepageTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := &fetchState{}
	start := time.Now()
	collector := f.buildCollector(reqCtx, state)
	visitErr := f.runCollector(reqCtx, collector, request.URL, state)

	result := crawler.FetchResult{
		URL:         request.URL,
		FinalURL:    firstNonEmpty(state.finalURL, request.URL),
		StatusCode:  state.status,
		ContentType: state.contentType,
		Duration:    time.Since(start),
	}
	if visitErr != nil {
		return result, f.classifyVisitError(ctx, request.URL, state, visitErr)
	}
	if err := f.checkResponse(request.URL, state); err != nil {
		return result, err
	}

	page, err := extractDocument(result.FinalURL, state.body)
	if err != nil {
		return result, fmt.Errorf("parse %s: %w", request.URL, err)
	}
	page.apply(&result, string(state.body))

	if request.Homepage && f.renderer != nil && f.detector != nil {
		probe := crawler.RenderProbe{StatusCode: state.status, HTML: state.body, WordCount: len(strings.Fields(result.Text))}
		if f.detector.ShouldPromote(probe) {
			f.rerender(ctx, &result)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, state *fetchState) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, state)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *fetchState) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	hooks.OnResponseHeaders(func(r *colly.Response) {
		state.status = r.StatusCode
		state.finalURL = r.Request.URL.String()
		state.contentType = r.Headers.Get("Content-Type")
		if r.StatusCode >= 400 {
			return
		}
		if !isHTML(state.contentType) {
			state.rejectedType = state.contentType
			r.Request.Abort()
			return
		}
		if n, err := strconv.Atoi(r.Headers.Get("Content-Length")); err == nil && n > f.cfg.MaxBodyBytes {
			state.declaredSize = n
			r.Request.Abort()
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		state.status = r.StatusCode
		state.finalURL = r.Request.URL.String()
		state.contentType = r.Headers.Get("Content-Type")
		state.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			state.status = r.StatusCode
		}
		state.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, state *fetchState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		// The collector shares ctx, so Visit unwinds promptly; waiting keeps
		// callbacks from touching state after we return.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if state.err != nil {
			return fmt.Errorf("colly response failed: %w", state.err)
		}
		return nil
	}
}

// classifyVisitError maps a failed visit onto the crawler's error taxonomy.
// Cancellation of the parent context is returned as-is so callers can stop.
func (f *Fetcher) classifyVisitError(parent context.Context, url string, state *fetchState, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("fetch %s: %w", url, parent.Err())
	}
	if state.rejectedType != "" {
		return &crawler.ContentRejectedError{
			URL:         url,
			ContentType: state.rejectedType,
			Reason:      "content type " + mediaType(state.rejectedType),
		}
	}
	if state.declaredSize > 0 {
		return &crawler.ContentRejectedError{
			URL:         url,
			ContentType: state.contentType,
			Size:        state.declaredSize,
			Reason:      fmt.Sprintf("declared size %d exceeds %d bytes", state.declaredSize, f.cfg.MaxBodyBytes),
		}
	}
	var safety *crawler.SafetyError
	if errors.As(err, &safety) {
		return safety
	}
	if state.status >= 400 {
		return statusError(url, state.status)
	}
	return &crawler.TransportError{URL: url, Class: crawler.ClassifyTransport(err), Err: err}
}

func (f *Fetcher) checkResponse(url string, state *fetchState) error {
	if state.status >= 400 {
		return statusError(url, state.status)
	}
	if !isHTML(state.contentType) {
		return &crawler.ContentRejectedError{
			URL:         url,
			ContentType: state.contentType,
			Reason:      "content type " + mediaType(state.contentType),
		}
	}
	if len(state.body) > f.cfg.MaxBodyBytes {
		return &crawler.ContentRejectedError{
			URL:         url,
			ContentType: state.contentType,
			Size:        len(state.body),
			Reason:      fmt.Sprintf("body exceeds %d bytes", f.cfg.MaxBodyBytes),
		}
	}
	return nil
}

// rerender replaces the static extraction with the headless DOM when the
// browser produced more visible text. Render failures keep the static page.
func (f *Fetcher) rerender(ctx context.Context, result *crawler.FetchResult) {
	rendered, err := f.renderer.Render(ctx, result.FinalURL)
	if err != nil {
		f.logger.Warn("headless render failed", zap.String("url", result.FinalURL), zap.Error(err))
		return
	}
	finalURL := firstNonEmpty(rendered.URL, result.FinalURL)
	page, err := extractDocument(finalURL, []byte(rendered.HTML))
	if err != nil {
		f.logger.Warn("parse rendered homepage", zap.String("url", finalURL), zap.Error(err))
		return
	}
	if len(strings.Fields(page.text)) <= len(strings.Fields(result.Text)) {
		f.logger.Debug("headless render added no text", zap.String("url", finalURL))
		return
	}
	page.apply(result, rendered.HTML)
	result.FinalURL = finalURL
	result.Rendered = true
	f.logger.Info("homepage re-rendered", zap.String("url", finalURL), zap.Int("links", len(result.Links)))
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.cfg.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if err := f.gate.CheckURL(req.URL); err != nil {
		return fmt.Errorf("redirect target: %w", err)
	}
	return nil
}

func statusError(url string, code int) error {
	if crawler.IsBlockingStatus(code) {
		return &crawler.HTTPBlockedError{URL: url, StatusCode: code}
	}
	return &crawler.HTTPStatusError{URL: url, StatusCode: code}
}

func isHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
