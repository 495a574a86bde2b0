package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/audit"
	"github.com/JakeFAU/ai-visibility-audit/internal/clock/system"
	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
	"github.com/JakeFAU/ai-visibility-audit/internal/server"
	"github.com/JakeFAU/ai-visibility-audit/internal/storage/memory"
)

type crawlReport struct {
	Target      crawler.DebugSnapshot   `json:"target"`
	TotalPages  int                     `json:"total_pages_scraped"`
	Priority    []string                `json:"priority_urls"`
	Competitors []crawler.DebugSnapshot `json:"competitors,omitempty"`
	Pages       []string                `json:"pages"`
	Evidence    *evidence.Layer         `json:"evidence,omitempty"`
	Document    *audit.Document         `json:"document,omitempty"`
	Attempts    int                     `json:"generation_attempts,omitempty"`
}

type crawlOptions struct {
	maxPages  int
	locale    string
	skipAudit bool
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl <domain> [competitor...]",
		Short: "Crawls and audits a domain once and prints the result as JSON",
		Long: `Runs the same pipeline as the worker with pages kept in memory: crawl the
domain and its competitors, extract evidence and generate the audit. With
--skip-audit no LLM call is made.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args, opts)
		},
	}
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "page budget for the target (0 uses the configured default)")
	cmd.Flags().StringVar(&opts.locale, "locale", "", "declared locale of the audience, e.g. en-US")
	cmd.Flags().BoolVar(&opts.skipAudit, "skip-audit", false, "stop after evidence extraction")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string, opts crawlOptions) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := memory.NewStore()
	c, err := server.NewCrawler(env.cfg, store, env.logger)
	if err != nil {
		return err
	}
	defer c.Close()

	job := crawler.Job{
		ID:             "cli",
		TargetDomain:   crawler.NormalizeDomain(args[0]),
		Locale:         opts.locale,
		MaxPagesTarget: opts.maxPages,
		Status:         crawler.JobStatusCrawling,
		CreatedAt:      system.New().Now(),
	}
	for _, d := range args[1:] {
		job.CompetitorDomains = append(job.CompetitorDomains, crawler.NormalizeDomain(d))
	}
	if err := c.Gate.Check("https://" + job.TargetDomain + "/"); err != nil {
		return fmt.Errorf("refusing to crawl: %w", err)
	}
	if err := store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	res, err := c.Controller.CrawlJob(ctx, job, nil)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", job.TargetDomain, err)
	}
	pages, err := store.ListPages(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	report := crawlReport{Target: res.TargetDebug, TotalPages: res.TotalPages, Priority: res.PriorityURLs}
	for _, comp := range res.Competitors {
		report.Competitors = append(report.Competitors, comp.Debug)
	}
	for _, p := range pages {
		report.Pages = append(report.Pages, p.URL)
	}
	env.logger.Info("crawl finished", zap.String("domain", job.TargetDomain), zap.Int("pages", res.TotalPages))

	if err := auditCrawl(ctx, env, store, job, pages, opts.skipAudit, &report); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func auditCrawl(
	ctx context.Context,
	env *cmdEnv,
	store *memory.Store,
	job crawler.Job,
	pages []crawler.Page,
	skip bool,
	report *crawlReport,
) error {
	if skip {
		var target []crawler.Page
		for _, p := range pages {
			if p.IsTarget {
				target = append(target, p)
			}
		}
		layer := evidence.NewExtractor(env.cfg.Evidence.MaxPages).BuildLayer(target, job.TargetDomain, job.Locale)
		report.Evidence = &layer
		return nil
	}

	runner, err := server.NewRunner(ctx, env.cfg, store, env.logger)
	if err != nil {
		return err
	}
	prepared, err := runner.Prepare(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("prepare audit: %w", err)
	}
	report.Evidence = &prepared.Layer
	result, err := runner.Generate(ctx, prepared)
	if err != nil {
		return fmt.Errorf("generate audit: %w", err)
	}
	report.Document = &result.Document
	report.Attempts = result.Attempts
	return nil
}
