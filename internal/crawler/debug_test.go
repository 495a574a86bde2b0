package crawler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestRecorderSnapshot(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(0, 0), step: 250 * time.Millisecond}
	rec := NewRecorder("example.com", 3, clock)
	rec.SetNormalizedURL("https://example.com")
	rec.Attempt()
	rec.Succeed()
	rec.Attempt()
	rec.Fail()
	rec.Block(BlockedTimeout)
	rec.Block(BlockedFirewall)
	for i := 0; i < 5; i++ {
		rec.AddError(fmt.Sprintf("err %d", i))
	}
	rec.RecordHomepage(200, "https://www.example.com/", 1500*time.Millisecond, "")
	rec.RecordSitemap(true, 42, 30*time.Millisecond)

	snap := rec.Snapshot()
	require.Equal(t, "https://example.com", snap.NormalizedURL)
	require.Equal(t, 2, snap.PagesAttempted)
	require.Equal(t, 1, snap.PagesSucceeded)
	require.Equal(t, 1, snap.PagesFailed)
	require.Equal(t, BlockedTimeout, snap.BlockedReason)
	require.Len(t, snap.Errors, 3)
	require.Equal(t, int64(1500), snap.Timings.HomeFetchMS)
	require.Equal(t, int64(30), snap.Timings.SitemapMS)
	require.Equal(t, int64(250), snap.Timings.TotalMS)
	require.True(t, snap.SitemapFound)

	snap.Errors[0] = "mutated"
	require.Equal(t, "err 0", rec.Snapshot().Errors[0])
}

func TestClipKeepsRuneBoundaries(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", clip("abc", 10))
	require.Equal(t, "ab", clip("abcdef", 2))
	require.Equal(t, "h", clip("hé", 2))
}
