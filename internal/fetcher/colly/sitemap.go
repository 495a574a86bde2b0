package collyfetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

const defaultSitemapMaxURLs = 100

// Sitemaps implements crawler.SitemapSource by reading <loc> entries from
// the conventional sitemap locations of a domain.
type Sitemaps struct {
	fetcher *Fetcher
	timeout time.Duration
	maxURLs int
	// scheme is overridden in tests.
	scheme string
}

// NewSitemaps reuses the fetcher's collector, including its redirect guard.
func NewSitemaps(fetcher *Fetcher, timeout time.Duration, maxURLs int) *Sitemaps {
	if timeout <= 0 {
		timeout = defaultAuxiliaryTimeout
	}
	if maxURLs <= 0 {
		maxURLs = defaultSitemapMaxURLs
	}
	return &Sitemaps{fetcher: fetcher, timeout: timeout, maxURLs: maxURLs, scheme: "https"}
}

// Discover tries each candidate in order and returns the first one that
// lists any URL. Candidates that answer non-200 are skipped silently.
func (s *Sitemaps) Discover(ctx context.Context, domain string) crawler.SitemapResult {
	start := time.Now()
	var result crawler.SitemapResult
	for _, candidate := range s.candidates(domain) {
		if ctx.Err() != nil {
			break
		}
		urls, err := s.readLocs(ctx, candidate)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Sitemap %s: %s", truncate(candidate, 30), truncate(err.Error(), 30)))
			continue
		}
		if len(urls) == 0 {
			continue
		}
		result.Found = true
		result.URL = candidate
		result.Total = len(urls)
		if len(urls) > s.maxURLs {
			urls = urls[:s.maxURLs]
		}
		result.URLs = urls
		break
	}
	result.Duration = time.Since(start)
	return result
}

// candidates lists /sitemap.xml, /sitemap_index.xml and, for a registrable
// apex domain, the www host's /sitemap.xml.
func (s *Sitemaps) candidates(domain string) []string {
	out := []string{
		s.scheme + "://" + domain + "/sitemap.xml",
		s.scheme + "://" + domain + "/sitemap_index.xml",
	}
	if apex, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil && apex == domain {
		out = append(out, s.scheme+"://www."+domain+"/sitemap.xml")
	}
	return out
}

func (s *Sitemaps) readLocs(ctx context.Context, sitemapURL string) ([]string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	collector := s.fetcher.baseCollector.Clone()
	collector.Context = reqCtx

	var (
		status  int
		locs    []string
		lastErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnXML("//loc", func(e *colly.XMLElement) {
		if status != 200 {
			return
		}
		if loc := strings.TrimSpace(e.Text); loc != "" {
			locs = append(locs, loc)
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		lastErr = err
	})

	if err := s.fetcher.runCollector(reqCtx, collector, sitemapURL, &fetchState{}); err != nil {
		if lastErr == nil {
			lastErr = err
		}
	}
	if status != 0 && status != 200 {
		return nil, nil
	}
	if lastErr != nil {
		s.fetcher.logger.Debug("sitemap fetch failed", zap.String("url", sitemapURL), zap.Error(lastErr))
		return nil, lastErr
	}
	return locs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
