package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSitemaps(t *testing.T, maxURLs int) *Sitemaps {
	t.Helper()
	s := NewSitemaps(newTestFetcher(t, Config{}, nil), 0, maxURLs)
	s.scheme = "http"
	return s
}

func urlset(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc> %s </loc></url>", loc)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func TestSitemapDiscoverFirstCandidate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sitemap.xml", r.URL.Path)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(urlset("https://acme.test/about", "https://acme.test/pricing")))
	}))
	t.Cleanup(srv.Close)

	res := newTestSitemaps(t, 0).Discover(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.True(t, res.Found)
	require.Equal(t, srv.URL+"/sitemap.xml", res.URL)
	require.Equal(t, []string{"https://acme.test/about", "https://acme.test/pricing"}, res.URLs)
	require.Equal(t, 2, res.Total)
	require.Empty(t, res.Errors)
}

func TestSitemapFallsBackToIndex(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path != "/sitemap_index.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>https://acme.test/post-sitemap.xml</loc></sitemap></sitemapindex>`))
	}))
	t.Cleanup(srv.Close)

	res := newTestSitemaps(t, 0).Discover(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.True(t, res.Found)
	require.Equal(t, []string{"https://acme.test/post-sitemap.xml"}, res.URLs)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/sitemap.xml", "/sitemap_index.xml"}, paths)
	require.Empty(t, res.Errors)
}

func TestSitemapCapsURLs(t *testing.T) {
	t.Parallel()

	locs := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		locs = append(locs, fmt.Sprintf("https://acme.test/p%d", i))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(urlset(locs...)))
	}))
	t.Cleanup(srv.Close)

	res := newTestSitemaps(t, 5).Discover(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.Len(t, res.URLs, 5)
	require.Equal(t, 7, res.Total)
}

func TestSitemapNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	res := newTestSitemaps(t, 0).Discover(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.False(t, res.Found)
	require.Empty(t, res.URLs)
	require.Empty(t, res.Errors)
}

func TestSitemapRecordsTransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	domain := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	res := newTestSitemaps(t, 0).Discover(context.Background(), domain)
	require.False(t, res.Found)
	require.Len(t, res.Errors, 2)
	for _, msg := range res.Errors {
		require.True(t, strings.HasPrefix(msg, "Sitemap http://"), msg)
	}
}

func TestSitemapCandidates(t *testing.T) {
	t.Parallel()

	s := NewSitemaps(newTestFetcher(t, Config{}, nil), 0, 0)
	require.Equal(t, []string{
		"https://acme.com/sitemap.xml",
		"https://acme.com/sitemap_index.xml",
		"https://www.acme.com/sitemap.xml",
	}, s.candidates("acme.com"))
	require.Equal(t, []string{
		"https://blog.acme.com/sitemap.xml",
		"https://blog.acme.com/sitemap_index.xml",
	}, s.candidates("blog.acme.com"))
	require.Len(t, s.candidates("acme.co.uk"), 3)
}
