package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNow(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	require.Equal(t, time.UTC, got.Location())
	require.WithinDuration(t, before.Add(time.Second), got, 2*time.Second)
	require.False(t, clk.Now().Before(got), "clock went backwards")
}
