// Package postgres persists audit jobs, fetched pages and job artifacts in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PoolConfig controls the shared connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Tables names the tables the Store reads and writes.
type Tables struct {
	Jobs      string
	Pages     string
	Artifacts string
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements crawler.JobStore, crawler.PageStore and crawler.ArtifactStore.
type Store struct {
	pool   pool
	tables Tables
	now    func() time.Time
}

// Connect opens a pgx pool. The same pool backs the Store and the worker lease.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

// NewStore wraps an existing pool.
func NewStore(p pool, tables Tables) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if tables.Jobs == "" {
		tables.Jobs = "audit_jobs"
	}
	if tables.Pages == "" {
		tables.Pages = "scraped_pages"
	}
	if tables.Artifacts == "" {
		tables.Artifacts = "job_artifacts"
	}
	for _, name := range []string{tables.Jobs, tables.Pages, tables.Artifacts} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &Store{pool: p, tables: tables, now: time.Now}, nil
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
)`, s.tables.Jobs),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job_id           TEXT NOT NULL,
	url_hash         TEXT NOT NULL,
	url              TEXT NOT NULL,
	normalized_url   TEXT NOT NULL,
	domain           TEXT NOT NULL,
	is_target        BOOLEAN NOT NULL,
	html             TEXT NOT NULL,
	text_content     TEXT NOT NULL,
	title            TEXT NOT NULL,
	meta_description TEXT NOT NULL,
	status_code      INTEGER NOT NULL,
	content_type     TEXT NOT NULL,
	word_count       INTEGER NOT NULL,
	fetched_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, url_hash)
)`, s.tables.Pages),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	body        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, kind)
)`, s.tables.Artifacts),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job crawler.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, created_at, updated_at, payload)
VALUES ($1, $2, $3, $4, $5)`, s.tables.Jobs)
	if _, err := s.pool.Exec(ctx, query, job.ID, string(job.Status), job.CreatedAt, s.now().UTC(), payload); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob overwrites the stored job.
func (s *Store) UpdateJob(ctx context.Context, job crawler.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = $3, payload = $4 WHERE id = $1`, s.tables.Jobs)
	tag, err := s.pool.Exec(ctx, query, job.ID, string(job.Status), s.now().UTC(), payload)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, crawler.ErrNotFound)
	}
	return nil
}

// GetJob loads a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (crawler.Job, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = $1`, s.tables.Jobs)
	return s.scanJob(s.pool.QueryRow(ctx, query, jobID), jobID)
}

// NextPendingJob returns the oldest pending job.
func (s *Store) NextPendingJob(ctx context.Context) (crawler.Job, error) {
	query := fmt.Sprintf(
		`SELECT payload FROM %s WHERE status = $1 ORDER BY created_at, id LIMIT 1`, s.tables.Jobs)
	return s.scanJob(s.pool.QueryRow(ctx, query, string(crawler.JobStatusPending)), "pending")
}

func (s *Store) scanJob(row pgx.Row, key string) (crawler.Job, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.Job{}, fmt.Errorf("job %s: %w", key, crawler.ErrNotFound)
		}
		return crawler.Job{}, fmt.Errorf("select job: %w", err)
	}
	var job crawler.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return crawler.Job{}, fmt.Errorf("decode job %s: %w", key, err)
	}
	return job, nil
}

// SavePage inserts a page; a repeated (job, url_hash) is ErrDuplicatePage.
func (s *Store) SavePage(ctx context.Context, page crawler.Page) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	url_hash,
	url,
	normalized_url,
	domain,
	is_target,
	html,
	text_content,
	title,
	meta_description,
	status_code,
	content_type,
	word_count,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (job_id, url_hash) DO NOTHING`, s.tables.Pages)

	args := []any{
		page.JobID,
		page.DedupKey,
		page.URL,
		page.NormalizedURL,
		page.Domain,
		page.IsTarget,
		page.HTML,
		page.Text,
		page.Title,
		page.MetaDescription,
		page.StatusCode,
		page.ContentType,
		page.WordCount,
		page.FetchedAt,
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("page %s: %w", page.URL, crawler.ErrDuplicatePage)
	}
	return nil
}

// PageExists reports whether a page with the dedup key was stored for the job.
func (s *Store) PageExists(ctx context.Context, jobID, dedupKey string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE job_id = $1 AND url_hash = $2)`, s.tables.Pages)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, jobID, dedupKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("select page: %w", err)
	}
	return exists, nil
}

// ListPages returns the job's pages in fetch order.
func (s *Store) ListPages(ctx context.Context, jobID string) ([]crawler.Page, error) {
	query := fmt.Sprintf(`
SELECT url_hash, url, normalized_url, domain, is_target, html, text_content,
	title, meta_description, status_code, content_type, word_count, fetched_at
FROM %s WHERE job_id = $1 ORDER BY fetched_at, url`, s.tables.Pages)
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []crawler.Page
	for rows.Next() {
		p := crawler.Page{JobID: jobID}
		if err := rows.Scan(
			&p.DedupKey,
			&p.URL,
			&p.NormalizedURL,
			&p.Domain,
			&p.IsTarget,
			&p.HTML,
			&p.Text,
			&p.Title,
			&p.MetaDescription,
			&p.StatusCode,
			&p.ContentType,
			&p.WordCount,
			&p.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// PutArtifact upserts a JSON artifact for the job.
func (s *Store) PutArtifact(ctx context.Context, jobID, kind string, data []byte) error {
	query := fmt.Sprintf(`
INSERT INTO %s (job_id, kind, body, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (job_id, kind) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		s.tables.Artifacts)
	if _, err := s.pool.Exec(ctx, query, jobID, kind, data, s.now().UTC()); err != nil {
		return fmt.Errorf("upsert artifact %s: %w", kind, err)
	}
	return nil
}

// GetArtifact loads a JSON artifact.
func (s *Store) GetArtifact(ctx context.Context, jobID, kind string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE job_id = $1 AND kind = $2`, s.tables.Artifacts)
	var body []byte
	if err := s.pool.QueryRow(ctx, query, jobID, kind).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("artifact %s/%s: %w", jobID, kind, crawler.ErrNotFound)
		}
		return nil, fmt.Errorf("select artifact: %w", err)
	}
	return body, nil
}
