package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/metrics"
)

// ControllerConfig tunes a domain crawl.
type ControllerConfig struct {
	MaxPagesTarget     int
	MaxPagesCompetitor int
	LinksPerPage       int
	MaxErrors          int
	RespectRobots      bool
}

// ControllerDeps bundles the collaborators of a Controller. Robots and
// Sitemaps may be nil.
type ControllerDeps struct {
	Fetcher  Fetcher
	Robots   RobotsPolicy
	Sitemaps SitemapSource
	Pages    PageStore
	Throttle Throttle
	Hasher   Hasher
	Clock    Clock
	Gate     *SafetyGate
}

// JobObserver receives crawl milestones so callers can persist progress.
type JobObserver interface {
	TargetCrawled(ctx context.Context, result DomainResult)
	CompetitorCrawled(ctx context.Context, index, total int, result DomainResult)
}

// Controller sequences robots, homepage, sitemap and frontier fetches for a
// domain. Fetches are strictly sequential.
type Controller struct {
	cfg    ControllerConfig
	deps   ControllerDeps
	logger *zap.Logger
}

// NewController wires a crawl controller.
func NewController(cfg ControllerConfig, deps ControllerDeps, logger *zap.Logger) *Controller {
	if cfg.LinksPerPage <= 0 {
		cfg.LinksPerPage = 30
	}
	if cfg.MaxPagesTarget <= 0 {
		cfg.MaxPagesTarget = 60
	}
	if cfg.MaxPagesCompetitor <= 0 {
		cfg.MaxPagesCompetitor = 15
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, deps: deps, logger: logger.Named("crawl")}
}

// CrawlJob crawls the target domain and, when the target yielded pages, each
// non-blank competitor. observer may be nil.
func (c *Controller) CrawlJob(ctx context.Context, job Job, observer JobObserver) (JobResult, error) {
	targetBudget := job.MaxPagesTarget
	if targetBudget <= 0 {
		targetBudget = c.cfg.MaxPagesTarget
	}
	compBudget := job.MaxPagesComp
	if compBudget <= 0 {
		compBudget = c.cfg.MaxPagesCompetitor
	}

	target, err := c.CrawlDomain(ctx, job.ID, job.TargetDomain, true, targetBudget)
	if err != nil {
		return JobResult{}, fmt.Errorf("crawl target %s: %w", job.TargetDomain, err)
	}
	result := JobResult{
		TotalPages:   target.PagesScraped,
		PriorityURLs: append([]string{}, target.PriorityURLs...),
		TargetDebug:  target.Debug,
	}
	if observer != nil {
		observer.TargetCrawled(ctx, target)
	}
	if target.PagesScraped == 0 {
		return result, nil
	}

	competitors := make([]string, 0, len(job.CompetitorDomains))
	for _, d := range job.CompetitorDomains {
		if strings.TrimSpace(d) != "" {
			competitors = append(competitors, d)
		}
	}
	for i, domain := range competitors {
		comp, err := c.CrawlDomain(ctx, job.ID, domain, false, compBudget)
		if err != nil {
			return result, fmt.Errorf("crawl competitor %s: %w", domain, err)
		}
		result.TotalPages += comp.PagesScraped
		result.Competitors = append(result.Competitors, comp)
		if observer != nil {
			observer.CompetitorCrawled(ctx, i, len(competitors), comp)
		}
	}
	return result, nil
}

// CrawlDomain crawls one domain up to budget pages. A failed homepage ends
// the crawl with zero pages and a classified blocked reason but no error;
// errors are returned only for cancellation and storage failures.
func (c *Controller) CrawlDomain(ctx context.Context, jobID, input string, isTarget bool, budget int) (DomainResult, error) {
	domain := NormalizeDomain(input)
	rec := NewRecorder(input, c.cfg.MaxErrors, c.deps.Clock)
	startURL := "https://" + domain
	rec.SetNormalizedURL(startURL)
	logger := c.logger.With(zap.String("job_id", jobID), zap.String("domain", domain), zap.Bool("target", isTarget))

	result := DomainResult{Domain: domain}
	finish := func() DomainResult {
		result.Debug = rec.Snapshot()
		return result
	}

	if c.deps.Gate != nil {
		if err := c.deps.Gate.Check(startURL); err != nil {
			rec.Block(BlockedUnsafeTarget)
			rec.AddError("unsafe url blocked: " + clip(startURL, 50))
			metrics.ObserveBlocked(string(BlockedUnsafeTarget))
			logger.Warn("refusing unsafe domain", zap.Error(err))
			return finish(), nil
		}
	}

	if c.cfg.RespectRobots && c.deps.Robots != nil {
		robots, err := c.deps.Robots.Check(ctx, domain)
		switch {
		case err != nil:
			rec.RecordRobots("error", false)
			rec.AddError("robots.txt: " + clip(err.Error(), 100))
		case robots.Indeterminate:
			rec.RecordRobots("indeterminate", false)
			rec.AddError("robots.txt: " + robots.Reason)
		default:
			rec.RecordRobots(strconv.Itoa(robots.Status), robots.DisallowsAll)
			if robots.DisallowsAll {
				rec.Block(BlockedRobots)
				rec.AddError("robots.txt disallows all crawling")
				metrics.ObserveBlocked(string(BlockedRobots))
				logger.Info("robots.txt disallows crawling")
				return finish(), nil
			}
		}
	}

	if c.deps.Throttle != nil {
		defer c.deps.Throttle.Forget(domain)
	}

	home, err := c.fetch(ctx, rec, startURL, true)
	c.fetchDone(domain)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return finish(), ctxErr
		}
		reason := HomepageBlockReason(err)
		rec.Block(reason)
		metrics.ObserveBlocked(string(reason))
		logger.Warn("homepage fetch failed", zap.String("reason", string(reason)), zap.Error(err))
		return finish(), nil
	}

	visited := make(map[string]struct{})
	homeKey, err := c.store(ctx, jobID, domain, isTarget, startURL, home)
	if err != nil {
		return finish(), err
	}
	visited[homeKey.normalized] = struct{}{}
	if finalNorm, err := NormalizeURL(home.FinalURL); err == nil {
		visited[finalNorm] = struct{}{}
	}
	result.PagesScraped = 1
	result.PriorityURLs = append(result.PriorityURLs, firstNonEmpty(home.FinalURL, startURL))
	rec.RecordHomepageLinks(len(home.Links))

	frontier := NewFrontier()
	for _, link := range sortByTier(home.Links) {
		if _, seen := visited[link]; !seen {
			frontier.Push(link)
		}
	}

	if c.deps.Sitemaps != nil {
		sm := c.deps.Sitemaps.Discover(ctx, domain)
		rec.RecordSitemap(sm.Found, sm.Total, sm.Duration)
		for _, msg := range sm.Errors {
			rec.AddError(msg)
		}
		hosts := allowedHosts(domain, home.FinalURL)
		for _, raw := range sm.URLs {
			normalized, err := NormalizeURL(raw)
			if err != nil {
				continue
			}
			if !hostAllowed(normalized, hosts) {
				continue
			}
			if _, seen := visited[normalized]; !seen {
				frontier.Push(normalized)
			}
		}
	}

	for result.PagesScraped < budget {
		next, ok := frontier.Pop()
		if !ok {
			break
		}
		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}

		key, err := c.deps.Hasher.Hash([]byte(next))
		if err != nil {
			return finish(), fmt.Errorf("hash url: %w", err)
		}
		exists, err := c.deps.Pages.PageExists(ctx, jobID, key)
		if err != nil {
			return finish(), fmt.Errorf("check page: %w", err)
		}
		if exists {
			continue
		}

		if c.deps.Throttle != nil {
			if err := c.deps.Throttle.Wait(ctx, domain); err != nil {
				return finish(), fmt.Errorf("throttle: %w", err)
			}
		}

		page, err := c.fetch(ctx, rec, next, false)
		c.fetchDone(domain)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(), ctxErr
			}
			continue
		}
		stored, err := c.store(ctx, jobID, domain, isTarget, next, page)
		if err != nil {
			return finish(), err
		}
		if !stored.saved {
			continue
		}
		result.PagesScraped++
		if PriorityTier(next) <= 2 {
			result.PriorityURLs = append(result.PriorityURLs, next)
		}

		if isTarget && result.PagesScraped < budget {
			links := sortByTier(page.Links)
			if len(links) > c.cfg.LinksPerPage {
				links = links[:c.cfg.LinksPerPage]
			}
			for _, link := range links {
				if _, seen := visited[link]; !seen {
					frontier.Push(link)
				}
			}
		}
	}

	logger.Info("domain crawl finished",
		zap.Int("pages", result.PagesScraped),
		zap.Int("priority", len(result.PriorityURLs)),
		zap.Int("frontier_left", frontier.Len()),
	)
	return finish(), nil
}

func (c *Controller) fetchDone(domain string) {
	if c.deps.Throttle != nil {
		c.deps.Throttle.Done(domain)
	}
}

func (c *Controller) fetch(ctx context.Context, rec *Recorder, target string, homepage bool) (FetchResult, error) {
	kind := "page"
	if homepage {
		kind = "homepage"
	}
	if c.deps.Gate != nil {
		if err := c.deps.Gate.Check(target); err != nil {
			rec.AddError("unsafe url blocked: " + clip(target, 50))
			metrics.ObserveFetch(kind, "unsafe", target, 0)
			return FetchResult{}, err
		}
	}

	rec.Attempt()
	res, err := c.deps.Fetcher.Fetch(ctx, FetchRequest{URL: target, Homepage: homepage})
	if homepage {
		status, fetchErr := homepageStatus(res, err)
		rec.RecordHomepage(status, res.FinalURL, res.Duration, fetchErr)
		if res.Rendered {
			rec.MarkRendered()
		}
	}
	if err == nil {
		rec.Succeed()
		metrics.ObserveFetch(kind, "ok", target, len(res.HTML))
		return res, nil
	}

	var (
		rejected  *ContentRejectedError
		transport *TransportError
		blocked   *HTTPBlockedError
		status    *HTTPStatusError
		safety    *SafetyError
	)
	switch {
	case errors.As(err, &rejected):
		if rejected.Size > 0 {
			rec.AddError(fmt.Sprintf("Page too large: %s (%d bytes)", clip(target, 50), rejected.Size))
		}
		metrics.ObserveFetch(kind, "skipped", target, 0)
	case errors.As(err, &transport):
		rec.Fail()
		rec.AddError(fmt.Sprintf("%s: %s", transport.Class, clip(target, 50)))
		metrics.ObserveFetch(kind, string(transport.Class), target, 0)
	case errors.As(err, &blocked):
		rec.Fail()
		rec.AddError(fmt.Sprintf("HTTP %d: %s", blocked.StatusCode, clip(target, 50)))
		metrics.ObserveFetch(kind, "blocked", target, 0)
	case errors.As(err, &status):
		rec.Fail()
		metrics.ObserveFetch(kind, "http_error", target, 0)
	case errors.As(err, &safety):
		rec.Fail()
		rec.AddError("unsafe redirect blocked: " + clip(target, 50))
		metrics.ObserveFetch(kind, "unsafe", target, 0)
	default:
		rec.Fail()
		rec.AddError("Error: " + clip(err.Error(), 50))
		metrics.ObserveFetch(kind, "error", target, 0)
	}
	return FetchResult{}, err
}

type storeOutcome struct {
	normalized string
	saved      bool
}

func (c *Controller) store(ctx context.Context, jobID, domain string, isTarget bool, requested string, res FetchResult) (storeOutcome, error) {
	normalized, err := NormalizeURL(requested)
	if err != nil {
		return storeOutcome{}, fmt.Errorf("normalize %s: %w", requested, err)
	}
	key, err := c.deps.Hasher.Hash([]byte(normalized))
	if err != nil {
		return storeOutcome{}, fmt.Errorf("hash url: %w", err)
	}
	page := Page{
		JobID:           jobID,
		URL:             firstNonEmpty(res.FinalURL, requested),
		NormalizedURL:   normalized,
		Domain:          domain,
		IsTarget:        isTarget,
		HTML:            res.HTML,
		Text:            res.Text,
		Title:           res.Title,
		MetaDescription: res.MetaDescription,
		StatusCode:      res.StatusCode,
		ContentType:     "text/html",
		WordCount:       len(strings.Fields(res.Text)),
		DedupKey:        key,
		FetchedAt:       c.deps.Clock.Now(),
	}
	if err := c.deps.Pages.SavePage(ctx, page); err != nil {
		if errors.Is(err, ErrDuplicatePage) {
			return storeOutcome{normalized: normalized}, nil
		}
		return storeOutcome{}, fmt.Errorf("save page: %w", err)
	}
	metrics.ObservePageStored(isTarget)
	return storeOutcome{normalized: normalized, saved: true}, nil
}

func homepageStatus(res FetchResult, err error) (int, string) {
	if err == nil {
		return res.StatusCode, ""
	}
	var (
		blocked *HTTPBlockedError
		status  *HTTPStatusError
	)
	switch {
	case errors.As(err, &blocked):
		return blocked.StatusCode, fmt.Sprintf("HTTP %d", blocked.StatusCode)
	case errors.As(err, &status):
		return status.StatusCode, fmt.Sprintf("HTTP %d", status.StatusCode)
	}
	return res.StatusCode, clip(err.Error(), 100)
}

func sortByTier(links []string) []string {
	out := append([]string{}, links...)
	sort.SliceStable(out, func(i, j int) bool {
		return PriorityTier(out[i]) < PriorityTier(out[j])
	})
	return out
}

func allowedHosts(domain, finalURL string) map[string]struct{} {
	hosts := map[string]struct{}{
		domain:          {},
		"www." + domain: {},
	}
	if u, err := url.Parse(finalURL); err == nil && u.Host != "" {
		hosts[strings.ToLower(u.Host)] = struct{}{}
	}
	return hosts
}

func hostAllowed(rawURL string, hosts map[string]struct{}) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := hosts[strings.ToLower(u.Host)]
	return ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
