package lease

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestFileLeaseLifecycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "worker.pid")
	l := NewFile(path, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

	require.NoError(t, l.Acquire(ctx), "re-acquire by the holder is a no-op")
	require.NoError(t, l.Release(ctx))
	_, err = os.Stat(path)
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.NoError(t, l.Release(ctx))
}

func TestFileLeaseHeldByLiveProcess(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "worker.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	l := NewFile(path, nil)
	l.alive = func(pid int) bool { return pid == 4242 }

	err := l.Acquire(context.Background())
	require.ErrorIs(t, err, ErrHeld)

	require.NoError(t, l.Release(context.Background()))
	_, err = os.Stat(path)
	require.NoError(t, err, "release leaves another holder's file alone")
}

func TestFileLeaseReplacesStaleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "worker.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242"), 0o644))

	l := NewFile(path, nil)
	l.alive = func(int) bool { return false }

	require.NoError(t, l.Acquire(context.Background()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(raw))
}

func TestPostgresLeaseAcquire(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l, err := NewPostgres(mock, PostgresConfig{Name: "audit-worker", Holder: "host-1"}, nil)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	mock.ExpectExec("INSERT INTO worker_leases").
		WithArgs("audit-worker", "host-1", now, now.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO worker_leases").
		WithArgs("audit-worker", "host-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("DELETE FROM worker_leases").
		WithArgs("audit-worker", "host-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, l.Acquire(context.Background()))
	require.ErrorIs(t, l.Acquire(context.Background()), ErrHeld)
	require.NoError(t, l.Release(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLeaseErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgres(mock, PostgresConfig{Table: "bad;table", Name: "n", Holder: "h"}, nil)
	require.ErrorContains(t, err, "invalid table name")
	_, err = NewPostgres(mock, PostgresConfig{Name: "n"}, nil)
	require.ErrorContains(t, err, "holder are required")
	_, err = NewPostgres(nil, PostgresConfig{Name: "n", Holder: "h"}, nil)
	require.ErrorContains(t, err, "pool is required")

	l, err := NewPostgres(mock, PostgresConfig{Table: "leases", Name: "n", Holder: "h"}, nil)
	require.NoError(t, err)
	mock.ExpectExec("INSERT INTO leases").
		WithArgs("n", "h", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("conn refused"))
	require.ErrorContains(t, l.Acquire(context.Background()), "acquire lease n: conn refused")
	require.NoError(t, mock.ExpectationsWereMet())
}
