// Package server builds the audit service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/api"
	"github.com/JakeFAU/ai-visibility-audit/internal/audit"
	"github.com/JakeFAU/ai-visibility-audit/internal/clock/system"
	"github.com/JakeFAU/ai-visibility-audit/internal/config"
	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
	"github.com/JakeFAU/ai-visibility-audit/internal/id/uuid"
	"github.com/JakeFAU/ai-visibility-audit/internal/lease"
	"github.com/JakeFAU/ai-visibility-audit/internal/llm/gemini"
	"github.com/JakeFAU/ai-visibility-audit/internal/metrics"
	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
	progresssinks "github.com/JakeFAU/ai-visibility-audit/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/ai-visibility-audit/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/ai-visibility-audit/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/ai-visibility-audit/internal/storage/gcs"
	localstorage "github.com/JakeFAU/ai-visibility-audit/internal/storage/local"
	memorystorage "github.com/JakeFAU/ai-visibility-audit/internal/storage/memory"
	pgstore "github.com/JakeFAU/ai-visibility-audit/internal/storage/postgres"
	"github.com/JakeFAU/ai-visibility-audit/internal/worker"
)

// Store is the persistence surface shared by the API, crawler and worker.
type Store interface {
	crawler.JobStore
	crawler.PageStore
	crawler.ArtifactStore
}

// App owns every long-lived dependency of the service.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     Store
	pool      *pgxpool.Pool
	ping      func(ctx context.Context) error
	gcs       *storage.Client
	psClient  *pubsub.Client
	psPub     *gcppublisher.Publisher
	hub       *progress.Hub
	recorder  *progresssinks.Recorder
	crawl     *Crawler
	worker    *worker.Worker
	apiServer *api.Server
}

// Build creates the application's dependencies. The caller owns the logger.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.Close(context.WithoutCancel(ctx))
		}
	}()

	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("db_enabled", cfg.DB.Enabled),
		zap.Bool("pubsub_enabled", cfg.PubSub.Enabled),
		zap.String("lease_backend", cfg.Worker.LeaseBackend),
	)

	if err = app.setupStore(ctx); err != nil {
		return nil, err
	}
	blobs, err := app.setupBlobs(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	lse, err := app.setupLease()
	if err != nil {
		return nil, err
	}
	app.setupProgress()

	app.crawl, err = NewCrawler(cfg, app.store, logger)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(ctx, cfg, app.store, logger)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	app.worker = worker.New(worker.Deps{
		Jobs:      app.store,
		Artifacts: app.store,
		Blobs:     blobs,
		Publisher: publisher,
		Crawler:   app.crawl.Controller,
		Auditor:   runner,
		Lease:     lse,
		Emitter:   app.hub,
		Clock:     clock,
	}, worker.Config{
		PollInterval:  cfg.PollInterval(),
		ErrorBackoff:  cfg.ErrorBackoff(),
		ArchivePrefix: cfg.Storage.Prefix,
		ContentType:   cfg.Storage.ContentType,
		Topic:         cfg.PubSub.TopicName,
	}, logger)

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	app.apiServer = api.NewServer(api.Deps{
		Jobs:      app.store,
		Pages:     app.store,
		Artifacts: app.store,
		IDs:       uuid.NewUUIDGenerator(),
		Clock:     clock,
		Gate:      app.crawl.Gate,
		Events:    app.recorder,
		Ready:     app.ready,
	}, api.Options{APIKey: apiKey}, logger)

	return app, nil
}

// NewRunner wires the audit pipeline to the configured LLM.
func NewRunner(ctx context.Context, cfg config.Config, store Store, logger *zap.Logger) (*audit.Runner, error) {
	gen, err := gemini.New(ctx, gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("llm client init failed: %w", err)
	}
	return audit.NewRunner(store, store, gen, evidence.NewExtractor(cfg.Evidence.MaxPages), system.New(),
		audit.Config{
			MaxAttempts:     cfg.LLM.MaxAttempts,
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			TargetPages:     cfg.Audit.TargetPages,
			CompetitorPages: cfg.Audit.CompetitorPages,
			SampledURLs:     cfg.Audit.SampledURLs,
			BackoffBase:     time.Duration(cfg.LLM.BackoffBaseMs) * time.Millisecond,
			BackoffMax:      time.Duration(cfg.LLM.BackoffMaxMs) * time.Millisecond,
		}, logger), nil
}

func (a *App) setupStore(ctx context.Context) error {
	if !a.cfg.DB.Enabled {
		a.logger.Warn("database disabled, jobs and pages are kept in memory")
		a.store = memorystorage.NewStore()
		return nil
	}
	pool, err := pgstore.Connect(ctx, pgstore.PoolConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxOpenConns), //nolint:gosec // bounded by config
	})
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	a.pool = pool
	store, err := pgstore.NewStore(pool, pgstore.Tables{
		Jobs:      a.cfg.DB.JobsTable,
		Pages:     a.cfg.DB.PagesTable,
		Artifacts: a.cfg.DB.ArtifactsTable,
	})
	if err != nil {
		return fmt.Errorf("postgres store init failed: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("postgres migrate failed: %w", err)
	}
	a.store = store
	a.ping = store.Ping
	a.logger.Info("postgres store initialized", zap.String("jobs_table", a.cfg.DB.JobsTable))
	return nil
}

func (a *App) setupBlobs(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcs = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.LocalDir))
		return blobs, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.psClient = client
	a.psPub = gcppublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.psPub, nil
}

func (a *App) setupLease() (lease.Lease, error) {
	if a.cfg.Worker.LeaseBackend != "postgres" {
		return lease.NewFile(a.cfg.Worker.LeasePath, a.logger), nil
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	l, err := lease.NewPostgres(a.pool, lease.PostgresConfig{
		Table:  a.cfg.DB.LeaseTable,
		Name:   a.cfg.Worker.LeaseName,
		Holder: fmt.Sprintf("%s-%d", host, os.Getpid()),
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("lease init failed: %w", err)
	}
	return l, nil
}

func (a *App) setupProgress() {
	a.recorder = progresssinks.NewRecorder(0)
	a.hub = progress.NewHub(progress.Config{
		BufferSize: a.cfg.Progress.BufferSize,
		Logger:     a.logger,
	},
		progresssinks.NewLogSink(a.logger),
		progresssinks.MetricsSink{},
		a.recorder,
	)
}

func (a *App) ready(ctx context.Context) error {
	if a.ping == nil {
		return nil
	}
	return a.ping(ctx)
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves the API and runs the worker until ctx ends or the worker stops
// on its own (for example when another instance holds the lease).
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
			cancel()
			return
		}
		serveErr <- nil
	}()

	workerErr := a.worker.Run(ctx)
	cancel()
	a.logger.Info("shutdown initiated")

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return errors.Join(workerErr, <-serveErr)
}

// Close releases every client. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.crawl != nil {
		a.crawl.Close()
	}
	if a.psPub != nil {
		a.psPub.Stop()
	}
	if a.psClient != nil {
		if err := a.psClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	a.logger.Info("shutdown complete")
}
