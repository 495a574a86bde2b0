package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierOrdersByTierThenDiscovery(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	for _, u := range []string{
		"https://example.com/careers",
		"https://example.com/blog",
		"https://example.com/pricing",
		"https://example.com/contact",
		"https://example.com/about",
	} {
		require.True(t, f.Push(u))
	}
	require.False(t, f.Push("https://example.com/pricing"))
	require.Equal(t, 5, f.Len())

	var got []string
	for {
		u, ok := f.Pop()
		if !ok {
			break
		}
		got = append(got, u)
	}
	require.Equal(t, []string{
		"https://example.com/pricing",
		"https://example.com/about",
		"https://example.com/blog",
		"https://example.com/contact",
		"https://example.com/careers",
	}, got)

	require.False(t, f.Push("https://example.com/about"), "popped URLs stay known")
}
