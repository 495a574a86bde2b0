package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeWait(t *testing.T, l *Limiter, scope string) time.Duration {
	t.Helper()
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), scope))
	return time.Since(start)
}

func TestLimiterPausesAfterEachFetch(t *testing.T) {
	t.Parallel()

	l := New(60 * time.Millisecond)
	assert.Less(t, timeWait(t, l, "acme.com"), 20*time.Millisecond, "first fetch of a scope is not delayed")

	l.Done("acme.com")
	assert.GreaterOrEqual(t, timeWait(t, l, "acme.com"), 45*time.Millisecond)

	// A fetch slower than the delay still earns a full pause afterwards.
	time.Sleep(90 * time.Millisecond)
	l.Done("acme.com")
	assert.GreaterOrEqual(t, timeWait(t, l, "ACME.com"), 45*time.Millisecond)

	assert.Less(t, timeWait(t, l, "rival.example"), 20*time.Millisecond, "other scopes are independent")
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(time.Hour)
	l.Done("acme.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "acme.com"))
}

func TestLimiterForgetDropsScope(t *testing.T) {
	t.Parallel()

	l := New(time.Hour)
	l.Done("acme.com")
	l.Done("rival.example")
	require.Equal(t, 2, l.Len())

	l.Forget("Acme.com")
	require.Equal(t, 1, l.Len())
	assert.Less(t, timeWait(t, l, "acme.com"), 20*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(0)
	for i := 0; i < 5; i++ {
		l.Done("acme.com")
		assert.Less(t, timeWait(t, l, "acme.com"), 20*time.Millisecond)
	}
	assert.Zero(t, l.Len())
}
