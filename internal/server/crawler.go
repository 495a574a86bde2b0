package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/clock/system"
	"github.com/JakeFAU/ai-visibility-audit/internal/config"
	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	collyfetcher "github.com/JakeFAU/ai-visibility-audit/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/ai-visibility-audit/internal/fetcher/headless"
	"github.com/JakeFAU/ai-visibility-audit/internal/hash/sha256"
	"github.com/JakeFAU/ai-visibility-audit/internal/headless/detector"
	"github.com/JakeFAU/ai-visibility-audit/internal/policy/ratelimit"
)

// Crawler bundles a crawl controller with the resources it owns.
type Crawler struct {
	Controller *crawler.Controller
	Gate       *crawler.SafetyGate
	renderer   *headlessfetcher.Renderer
}

// NewCrawler assembles the fetch pipeline described by cfg on top of pages.
func NewCrawler(cfg config.Config, pages crawler.PageStore, logger *zap.Logger) (*Crawler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := crawler.NewSafetyGate(cfg.Crawler.BlockedHosts)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:       cfg.Crawler.UserAgent,
		RequestTimeout:  cfg.RequestTimeout(),
		HomepageTimeout: cfg.HomepageTimeout(),
		MaxBodyBytes:    cfg.MaxPageBytes(),
		MaxRedirects:    cfg.Crawler.MaxRedirects,
	}, gate, logger)
	logger.Info("using colly fetcher", zap.String("user_agent", cfg.Crawler.UserAgent))

	c := &Crawler{Gate: gate}
	if cfg.Headless.Enabled {
		renderer, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       1,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.HeadlessTimeout(),
		}, gate)
		if err != nil {
			return nil, fmt.Errorf("headless renderer init failed: %w", err)
		}
		c.renderer = renderer
		fetcher.WithRenderer(renderer, detector.NewHeuristic(cfg.Headless.PromotionThresh))
		logger.Info("headless homepage rendering enabled",
			zap.Int("promotion_threshold", cfg.Headless.PromotionThresh))
	}

	deps := crawler.ControllerDeps{
		Fetcher:  fetcher,
		Sitemaps: collyfetcher.NewSitemaps(fetcher, cfg.AuxiliaryTimeout(), cfg.Crawler.SitemapMaxURLs),
		Pages:    pages,
		Throttle: ratelimit.New(cfg.FetchDelay()),
		Hasher:   sha256.New(),
		Clock:    system.New(),
		Gate:     gate,
	}
	if cfg.Crawler.RespectRobots {
		deps.Robots = collyfetcher.NewRobots(cfg.Crawler.UserAgent, cfg.AuxiliaryTimeout(), gate, logger)
	}
	c.Controller = crawler.NewController(crawler.ControllerConfig{
		MaxPagesTarget:     cfg.Crawler.MaxPagesTarget,
		MaxPagesCompetitor: cfg.Crawler.MaxPagesCompetitor,
		LinksPerPage:       cfg.Crawler.LinksPerPage,
		MaxErrors:          cfg.Crawler.MaxErrors,
		RespectRobots:      cfg.Crawler.RespectRobots,
	}, deps, logger)
	return c, nil
}

// Close stops the headless browser, if one was started.
func (c *Crawler) Close() {
	if c.renderer != nil {
		c.renderer.Close()
	}
}
