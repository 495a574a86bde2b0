// Package worker runs audit jobs one at a time: crawl, extract evidence,
// generate the audit, archive and announce the result.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/audit"
	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/lease"
	"github.com/JakeFAU/ai-visibility-audit/internal/metrics"
	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
)

// Progress checkpoints reported on the job.
const (
	progressCrawling    = 10
	progressCompetitors = 40
	progressEvidence    = 60
	progressAudit       = 80
	progressDone        = 100
)

// Crawler crawls a job's target and competitor domains.
type Crawler interface {
	CrawlJob(ctx context.Context, job crawler.Job, observer crawler.JobObserver) (crawler.JobResult, error)
}

// Auditor builds the evidence layer and generates the accepted document.
type Auditor interface {
	Prepare(ctx context.Context, jobID string) (audit.Prepared, error)
	Generate(ctx context.Context, p audit.Prepared) (audit.Result, error)
}

// Config controls polling, archiving and event publishing.
type Config struct {
	PollInterval  time.Duration
	ErrorBackoff  time.Duration
	ArchivePrefix string
	ContentType   string
	Topic         string
}

// Deps bundles the collaborators of a Worker. Blobs, Publisher, Emitter and
// Lease may be nil.
type Deps struct {
	Jobs      crawler.JobStore
	Artifacts crawler.ArtifactStore
	Blobs     crawler.BlobStore
	Publisher crawler.Publisher
	Crawler   Crawler
	Auditor   Auditor
	Lease     lease.Lease
	Emitter   progress.Emitter
	Clock     crawler.Clock
}

// Worker is the single-instance job loop.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 10 * time.Second
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "audits"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger.Named("worker")}
}

// Run holds the lease and processes pending jobs until ctx ends. It returns
// lease.ErrHeld (wrapped) without polling when another worker is live.
func (w *Worker) Run(ctx context.Context) error {
	if w.deps.Lease != nil {
		if err := w.deps.Lease.Acquire(ctx); err != nil {
			return fmt.Errorf("acquire lease: %w", err)
		}
		defer func() {
			if err := w.deps.Lease.Release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("release lease failed", zap.Error(err))
			}
		}()
	}
	w.logger.Info("worker started", zap.Duration("poll_interval", w.cfg.PollInterval))

	for {
		if err := w.renewLease(ctx); err != nil {
			return err
		}
		job, err := w.deps.Jobs.NextPendingJob(ctx)
		wait := time.Duration(0)
		switch {
		case ctx.Err() != nil:
			w.logger.Info("worker stopping")
			return nil
		case errors.Is(err, crawler.ErrNotFound):
			wait = w.cfg.PollInterval
		case err != nil:
			w.logger.Error("poll pending jobs failed", zap.Error(err))
			wait = w.cfg.ErrorBackoff
		default:
			if err := w.Process(ctx, job); err != nil {
				w.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				w.logger.Info("worker stopping")
				return nil
			case <-time.After(wait):
			}
		}
	}
}

// renewLease refreshes the lease before each poll so a row lease does not
// expire under a long-lived worker. Only losing the lease stops the loop.
func (w *Worker) renewLease(ctx context.Context) error {
	if w.deps.Lease == nil || ctx.Err() != nil {
		return nil
	}
	err := w.deps.Lease.Acquire(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lease.ErrHeld):
		return fmt.Errorf("renew lease: %w", err)
	default:
		w.logger.Warn("renew lease failed", zap.Error(err))
		return nil
	}
}

// Process runs one job to a terminal status. The returned error is the
// failure already recorded on the job.
func (w *Worker) Process(ctx context.Context, job crawler.Job) error {
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	logger := w.logger.With(zap.String("job_id", job.ID), zap.String("target", job.TargetDomain))
	started := w.deps.Clock.Now().UTC()
	job.StartedAt = &started
	w.emit(job, progress.KindJobStart, "")

	stage := crawler.JobStatusCrawling
	fail := func(err error) error {
		return w.fail(ctx, job, stage, err, logger)
	}

	if err := w.advance(ctx, &job, stage, progressCrawling); err != nil {
		return fail(err)
	}
	stageStart := time.Now()
	observer := &jobObserver{w: w, job: &job, logger: logger}
	result, err := w.deps.Crawler.CrawlJob(ctx, job, observer)
	if err != nil {
		return fail(err)
	}
	if observer.err != nil {
		return fail(observer.err)
	}
	job.TotalPages = result.TotalPages
	job.PriorityURLs = result.PriorityURLs
	metrics.ObserveStage(string(stage), time.Since(stageStart))

	stage = crawler.JobStatusExtractingEvidence
	if err := w.advance(ctx, &job, stage, progressEvidence); err != nil {
		return fail(err)
	}
	stageStart = time.Now()
	prepared, err := w.deps.Auditor.Prepare(ctx, job.ID)
	if err != nil {
		return fail(err)
	}
	evidenceJSON, err := json.Marshal(prepared.Layer)
	if err != nil {
		return fail(fmt.Errorf("marshal evidence: %w", err))
	}
	if err := w.deps.Artifacts.PutArtifact(ctx, job.ID, crawler.ArtifactEvidence, evidenceJSON); err != nil {
		return fail(fmt.Errorf("store evidence: %w", err))
	}
	metrics.ObserveStage(string(stage), time.Since(stageStart))

	stage = crawler.JobStatusGeneratingAudit
	if err := w.advance(ctx, &job, stage, progressAudit); err != nil {
		return fail(err)
	}
	stageStart = time.Now()
	res, err := w.deps.Auditor.Generate(ctx, prepared)
	if err != nil {
		return fail(err)
	}
	docJSON, err := json.Marshal(res.Document)
	if err != nil {
		return fail(fmt.Errorf("marshal document: %w", err))
	}
	if err := w.deps.Artifacts.PutArtifact(ctx, job.ID, crawler.ArtifactDocument, docJSON); err != nil {
		return fail(fmt.Errorf("store document: %w", err))
	}
	metrics.ObserveStage(string(stage), time.Since(stageStart))

	uri := w.archive(ctx, job, map[string][]byte{
		"document.json": docJSON,
		"evidence.json": evidenceJSON,
	}, logger)

	finished := w.deps.Clock.Now().UTC()
	job.Status = crawler.JobStatusCompleted
	job.Stage = string(crawler.JobStatusCompleted)
	job.Progress = progressDone
	job.CompletedAt = &finished
	if err := w.deps.Jobs.UpdateJob(ctx, job); err != nil {
		return fail(fmt.Errorf("complete job: %w", err))
	}
	metrics.ObserveJob(string(job.Status))
	w.emit(job, progress.KindJobDone, "")
	w.publish(ctx, job, uri, logger)
	logger.Info("job completed",
		zap.Int("pages", job.TotalPages),
		zap.Int("attempts", res.Attempts),
		zap.Duration("elapsed", finished.Sub(started)))
	return nil
}

func (w *Worker) advance(ctx context.Context, job *crawler.Job, status crawler.JobStatus, pct int) error {
	job.Status = status
	job.Stage = string(status)
	job.Progress = pct
	if err := w.deps.Jobs.UpdateJob(ctx, *job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	w.emit(*job, progress.KindStage, "")
	return nil
}

// fail records "[stage] message" on the job. The write outlives ctx so a
// shutdown still leaves a terminal status behind.
func (w *Worker) fail(
	ctx context.Context,
	job crawler.Job,
	stage crawler.JobStatus,
	cause error,
	logger *zap.Logger,
) error {
	finished := w.deps.Clock.Now().UTC()
	job.Status = crawler.JobStatusFailed
	job.Error = fmt.Sprintf("[%s] %s", stage, cause.Error())
	job.CompletedAt = &finished

	var fatal *audit.FatalPipelineError
	if errors.As(cause, &fatal) {
		logger = logger.With(zap.String("pipeline_stage", string(fatal.Stage)), zap.Int("attempts", fatal.Attempts))
	}
	logger.Error("job failed", zap.String("stage", string(stage)), zap.Error(cause))

	writeCtx := context.WithoutCancel(ctx)
	if err := w.deps.Jobs.UpdateJob(writeCtx, job); err != nil {
		logger.Error("record job failure failed", zap.Error(err))
	}
	metrics.ObserveJob(string(job.Status))
	w.emit(job, progress.KindJobError, job.Error)
	w.publish(writeCtx, job, "", logger)
	return fmt.Errorf("%s: %w", stage, cause)
}

// archive copies artifacts to the blob store and returns the document URI.
// Archive failures are logged; the artifacts already live in the store.
func (w *Worker) archive(ctx context.Context, job crawler.Job, files map[string][]byte, logger *zap.Logger) string {
	if w.deps.Blobs == nil {
		return ""
	}
	if job.Debug != nil {
		if raw, err := json.Marshal(job.Debug); err == nil {
			files["scrape_debug.json"] = raw
		}
	}
	var docURI string
	for name, data := range files {
		uri, err := w.deps.Blobs.PutObject(ctx, path.Join(w.cfg.ArchivePrefix, job.ID, name), w.cfg.ContentType, data)
		if err != nil {
			logger.Warn("archive artifact failed", zap.String("name", name), zap.Error(err))
			continue
		}
		if name == "document.json" {
			docURI = uri
		}
	}
	return docURI
}

func (w *Worker) publish(ctx context.Context, job crawler.Job, documentURI string, logger *zap.Logger) {
	if w.deps.Publisher == nil {
		return
	}
	id, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, newEvent(job, documentURI))
	if err != nil {
		logger.Warn("publish job event failed", zap.Error(err))
		return
	}
	logger.Debug("published job event", zap.String("message_id", id))
}

func (w *Worker) emit(job crawler.Job, kind progress.Kind, note string) {
	w.deps.Emitter.Emit(progress.Event{
		JobID:   job.ID,
		TS:      w.deps.Clock.Now(),
		Kind:    kind,
		Stage:   job.Stage,
		Percent: job.Progress,
		Note:    note,
	})
}

// jobObserver persists crawl milestones onto the job as they happen.
type jobObserver struct {
	w      *Worker
	job    *crawler.Job
	logger *zap.Logger
	err    error
}

func (o *jobObserver) TargetCrawled(ctx context.Context, result crawler.DomainResult) {
	debug := result.Debug
	o.job.Debug = &debug
	o.job.TotalPages = result.PagesScraped
	o.job.PriorityURLs = result.PriorityURLs
	if result.PagesScraped == 0 {
		blocked := string(debug.BlockedReason)
		if blocked == "" {
			blocked = "none"
		}
		o.job.Note = fmt.Sprintf(
			"SCRAPE_LIMITED_DATA: 0 pages fetched (blocked: %s). Continuing with limited data...", blocked)
		o.logger.Warn("target yielded no pages", zap.String("blocked_reason", blocked))
	}
	o.domainCrawled(result, progressCompetitors)
	if err := o.w.advance(ctx, o.job, crawler.JobStatusCrawling, progressCompetitors); err != nil && o.err == nil {
		o.err = err
	}
}

func (o *jobObserver) CompetitorCrawled(_ context.Context, index, total int, result crawler.DomainResult) {
	o.job.TotalPages += result.PagesScraped
	pct := progressCompetitors + (progressEvidence-progressCompetitors)*(index+1)/max(total, 1)
	o.domainCrawled(result, min(pct, progressEvidence-1))
}

func (o *jobObserver) domainCrawled(result crawler.DomainResult, pct int) {
	o.w.deps.Emitter.Emit(progress.Event{
		JobID:   o.job.ID,
		TS:      o.w.deps.Clock.Now(),
		Kind:    progress.KindDomainCrawled,
		Stage:   o.job.Stage,
		Percent: pct,
		Domain:  result.Domain,
		Pages:   result.PagesScraped,
		Note:    string(result.Debug.BlockedReason),
	})
}
