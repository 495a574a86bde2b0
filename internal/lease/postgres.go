package lease

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

// PostgresConfig names the lease row and its holder.
type PostgresConfig struct {
	Table  string
	Name   string
	Holder string
	TTL    time.Duration
}

// Postgres is a row lease: one row per lease name, claimable when free,
// already ours, or expired.
type Postgres struct {
	db     execer
	cfg    PostgresConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewPostgres builds a row lease on an existing pool.
func NewPostgres(db execer, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if cfg.Table == "" {
		cfg.Table = "worker_leases"
	}
	if !validTableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	if cfg.Name == "" || cfg.Holder == "" {
		return nil, fmt.Errorf("lease name and holder are required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, cfg: cfg, now: time.Now, logger: logger.Named("lease")}, nil
}

// Acquire claims or refreshes the lease row.
func (l *Postgres) Acquire(ctx context.Context) error {
	now := l.now().UTC()
	query := fmt.Sprintf(`
INSERT INTO %[1]s (name, holder, acquired_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET holder = EXCLUDED.holder, acquired_at = EXCLUDED.acquired_at, expires_at = EXCLUDED.expires_at
WHERE %[1]s.holder = EXCLUDED.holder OR %[1]s.expires_at < EXCLUDED.acquired_at`, l.cfg.Table)

	tag, err := l.db.Exec(ctx, query, l.cfg.Name, l.cfg.Holder, now, now.Add(l.cfg.TTL))
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", l.cfg.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrHeld, l.cfg.Name)
	}
	l.logger.Debug("lease acquired", zap.String("name", l.cfg.Name), zap.String("holder", l.cfg.Holder))
	return nil
}

// Release deletes the lease row if we still hold it.
func (l *Postgres) Release(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1 AND holder = $2`, l.cfg.Table)
	if _, err := l.db.Exec(ctx, query, l.cfg.Name, l.cfg.Holder); err != nil {
		return fmt.Errorf("release lease %s: %w", l.cfg.Name, err)
	}
	l.logger.Info("lease released", zap.String("name", l.cfg.Name))
	return nil
}
