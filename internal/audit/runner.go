package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
	"github.com/JakeFAU/ai-visibility-audit/internal/metrics"
	"github.com/JakeFAU/ai-visibility-audit/internal/policy/backoff"
)

// Config bounds one audit run.
type Config struct {
	MaxAttempts     int
	Temperature     float64
	MaxOutputTokens int
	TargetPages     int
	CompetitorPages int
	SampledURLs     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 6000
	}
	if c.TargetPages <= 0 {
		c.TargetPages = 15
	}
	if c.CompetitorPages <= 0 {
		c.CompetitorPages = 10
	}
	if c.SampledURLs <= 0 {
		c.SampledURLs = 10
	}
	return c
}

// Prepared is the deterministic generation context for a job.
type Prepared struct {
	Job         crawler.Job
	Layer       evidence.Layer
	Target      []crawler.Page
	Competitors []crawler.Page
	Prompt      string
	SampledURLs []string
}

// Result is an accepted audit.
type Result struct {
	Document    Document
	SampledURLs []string
	Attempts    int
	Layer       evidence.Layer
}

// Runner drives a job's pages through evidence extraction, generation,
// repair, post-processing and validation.
type Runner struct {
	jobs      crawler.JobStore
	pages     crawler.PageStore
	gen       Generator
	extractor *evidence.Extractor
	clock     crawler.Clock
	backoff   *backoff.Exponential
	cfg       Config
	logger    *zap.Logger
}

// NewRunner wires a Runner.
func NewRunner(
	jobs crawler.JobStore,
	pages crawler.PageStore,
	gen Generator,
	extractor *evidence.Extractor,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = evidence.NewExtractor(evidence.DefaultMaxPages)
	}
	cfg = cfg.withDefaults()
	return &Runner{
		jobs:      jobs,
		pages:     pages,
		gen:       gen,
		extractor: extractor,
		clock:     clock,
		backoff:   backoff.New(cfg.BackoffBase, cfg.BackoffMax),
		cfg:       cfg,
		logger:    logger.Named("audit"),
	}
}

// Run prepares the context for jobID and generates an accepted document.
func (r *Runner) Run(ctx context.Context, jobID string) (Result, error) {
	prepared, err := r.Prepare(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	return r.Generate(ctx, prepared)
}

// Prepare loads the job and its pages, builds the evidence layer and
// renders the prompt. It makes no generation calls.
func (r *Runner) Prepare(ctx context.Context, jobID string) (Prepared, error) {
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Prepared{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	pages, err := r.pages.ListPages(ctx, jobID)
	if err != nil {
		return Prepared{}, fmt.Errorf("list pages for job %s: %w", jobID, err)
	}

	var target, competitors []crawler.Page
	for _, p := range pages {
		if p.IsTarget {
			target = append(target, p)
		} else {
			competitors = append(competitors, p)
		}
	}

	layer := r.extractor.BuildLayer(target, job.TargetDomain, job.Locale)
	selected := SelectPages(target, r.cfg.TargetPages)
	selectedCompetitors := SelectPages(competitors, r.cfg.CompetitorPages)

	sampled := make([]string, 0, r.cfg.SampledURLs)
	for _, p := range selected[:min(len(selected), r.cfg.SampledURLs)] {
		sampled = append(sampled, p.URL)
	}

	prompt := BuildPrompt(PromptInput{
		Job:         job,
		Target:      selected,
		Competitors: selectedCompetitors,
		Layer:       layer,
		Summary:     Summarize(target),
	})
	return Prepared{
		Job:         job,
		Layer:       layer,
		Target:      selected,
		Competitors: selectedCompetitors,
		Prompt:      prompt,
		SampledURLs: sampled,
	}, nil
}

// Generate runs the attempt loop until a document is accepted or the
// attempt budget is spent. Transport failures back off; truncation, parse
// and schema failures retry with the failure appended to the base prompt.
func (r *Runner) Generate(ctx context.Context, p Prepared) (Result, error) {
	logger := r.logger.With(zap.String("job_id", p.Job.ID))
	facts := Facts{
		Layer:           p.Layer,
		SampledURLs:     p.SampledURLs,
		TargetPages:     len(p.Target),
		CompetitorPages: len(p.Competitors),
		ScrapedAt:       r.now(),
	}

	prompt := p.Prompt
	stage := StageDrafting
	var last error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		logger.Debug("audit attempt", zap.Int("attempt", attempt), zap.String("stage", string(StageDrafting)))
		resp, err := r.gen.Generate(ctx, Request{
			System:          SystemPrompt,
			Prompt:          prompt,
			Temperature:     r.cfg.Temperature,
			MaxOutputTokens: r.cfg.MaxOutputTokens,
		})
		if err != nil {
			if ctx.Err() != nil || !backoff.Retryable(err) {
				return Result{}, fmt.Errorf("generate audit: %w", err)
			}
			metrics.ObserveGenerationAttempt("transport_error")
			logger.Warn("generation call failed", zap.Int("attempt", attempt), zap.Error(err))
			stage, last = StageDrafting, fmt.Errorf("generate: %w", err)
			if attempt < r.cfg.MaxAttempts {
				if err := r.backoff.Sleep(ctx, attempt); err != nil {
					return Result{}, fmt.Errorf("generate audit: %w", err)
				}
			}
			continue
		}
		if resp.Truncated {
			metrics.ObserveGenerationAttempt("truncated")
			logger.Warn("generation truncated", zap.Int("attempt", attempt))
			stage, last = StageDrafting, &TruncatedError{Attempt: attempt}
			prompt = p.Prompt + truncationSuffix
			continue
		}

		doc, failedAt, err := r.accept(resp.Text, facts, p.Layer.CompanyProfile, logger)
		if err == nil {
			metrics.ObserveGenerationAttempt("accepted")
			logger.Info("audit accepted", zap.Int("attempts", attempt), zap.String("stage", string(StageAccepted)))
			return Result{Document: doc, SampledURLs: p.SampledURLs, Attempts: attempt, Layer: p.Layer}, nil
		}
		stage, last = failedAt, err

		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			metrics.ObserveGenerationAttempt("parse_error")
			prompt = p.Prompt + parseRetryPrefix + parseErr.Error()
		} else {
			metrics.ObserveGenerationAttempt("schema_error")
			prompt = p.Prompt + schemaRetryPrefix + err.Error()
		}
		logger.Warn("audit attempt rejected", zap.Int("attempt", attempt), zap.String("stage", string(failedAt)), zap.Error(err))
	}

	logger.Error("audit rejected", zap.String("stage", string(StageRejected)), zap.Error(last))
	return Result{}, &FatalPipelineError{Stage: stage, Attempts: r.cfg.MaxAttempts, Last: last}
}

// accept takes raw generated text to an accepted document, reporting the
// stage that failed otherwise.
func (r *Runner) accept(text string, facts Facts, profile evidence.CompanyProfile, logger *zap.Logger) (Document, Stage, error) {
	doc, err := Decode(text)
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		fixed, ok := Repair(text, parseErr)
		if !ok {
			return Document{}, StageRepairing, parseErr
		}
		logger.Debug("repaired generated json", zap.String("stage", string(StageRepairing)))
		doc, err = Decode(fixed)
		if err != nil {
			return Document{}, StageRepairing, err
		}
	}
	if err != nil {
		return Document{}, StageValidating, err
	}

	logger.Debug("post-processing document", zap.String("stage", string(StagePostProcessing)))
	doc = PostProcess(doc, facts)
	if err := Validate(doc); err != nil {
		return Document{}, StageValidating, err
	}

	checked, err := QA(doc, profile)
	if err != nil {
		logger.Warn("qa gate failed; keeping post-processed document", zap.Error(err))
		return doc, StageAccepted, nil
	}
	return checked, StageAccepted, nil
}

func (r *Runner) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now()
}
