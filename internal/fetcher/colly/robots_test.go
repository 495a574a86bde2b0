package collyfetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

func newTestRobots(transport http.RoundTripper, gate *crawler.SafetyGate) *Robots {
	robots := NewRobots("audit-agent", 0, gate, nil)
	robots.backoff = []time.Duration{0, 0, 0}
	robots.client.Transport = transport
	return robots
}

func TestRobotsCheckIndeterminateAfterRetries(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{{err: context.DeadlineExceeded}}}
	res, err := newTestRobots(base, nil).Check(context.Background(), "acme.example")
	require.NoError(t, err)
	require.True(t, res.Indeterminate)
	require.Equal(t, robotsFallbackReasonTLSHandshake, res.Reason)
	require.False(t, res.DisallowsAll)
	require.Equal(t, 4, base.calls)
}

func TestRobotsCheckRetryStopsAfterSuccess(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{
		results: []roundTripResult{
			{err: context.DeadlineExceeded},
			{resp: httptest.NewRecorder().Result()},
		},
	}
	res, err := newTestRobots(base, nil).Check(context.Background(), "acme.example")
	require.NoError(t, err)
	require.Equal(t, 2, base.calls)
	require.Equal(t, http.StatusOK, res.Status)
	require.False(t, res.Indeterminate)
	require.False(t, res.DisallowsAll)
}

func TestRobotsCheckConnectionErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{{err: io.ErrUnexpectedEOF}}}
	_, err := newTestRobots(base, nil).Check(context.Background(), "acme.example")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 1, base.calls)
}

func TestRobotsCheckRejectsUnsafeRedirects(t *testing.T) {
	t.Parallel()

	var internalHits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		internalHits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	}))
	t.Cleanup(internal.Close)

	cases := []struct {
		name     string
		location string
		gate     *crawler.SafetyGate
	}{
		{name: "loopback metadata", location: internal.URL + "/latest/meta-data"},
		{name: "link-local metadata", location: "http://169.254.169.254/latest/meta-data"},
		{name: "blocklisted host", location: "https://metadata.internal/robots.txt", gate: crawler.NewSafetyGate([]string{"*.internal"})},
		{name: "non-http scheme", location: "file:///etc/passwd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			public := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, tc.location, http.StatusFound)
			}))
			t.Cleanup(public.Close)

			res, err := newTestRobots(public.Client().Transport, tc.gate).
				Check(context.Background(), strings.TrimPrefix(public.URL, "https://"))
			var safety *crawler.SafetyError
			require.ErrorAs(t, err, &safety)
			require.False(t, res.DisallowsAll)
			require.False(t, res.Indeterminate)
		})
	}
	require.Zero(t, internalHits.Load())
}

func TestRobotsCheckFollowsSafeRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/policies/robots.txt", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/policies/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})

	res, err := newTestRobots(srv.Client().Transport, nil).
		Check(context.Background(), strings.TrimPrefix(srv.URL, "https://"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.Status)
	require.True(t, res.DisallowsAll)
}

func TestRobotsCheck(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		status       int
		body         string
		disallowsAll bool
	}{
		{name: "blanket disallow", status: 200, body: "User-agent: *\nDisallow: /\n", disallowsAll: true},
		{name: "path disallow only", status: 200, body: "User-agent: *\nDisallow: /admin\n"},
		{name: "other agent only", status: 200, body: "User-agent: BadBot\nDisallow: /\n"},
		{name: "empty file", status: 200, body: ""},
		{name: "missing", status: 404, body: "User-agent: *\nDisallow: /\n"},
		{name: "server error", status: 503, body: ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/robots.txt", r.URL.Path)
				require.Equal(t, "audit-agent", r.UserAgent())
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			res, err := newTestRobots(srv.Client().Transport, nil).Check(context.Background(), strings.TrimPrefix(srv.URL, "https://"))
			require.NoError(t, err)
			require.Equal(t, tc.status, res.Status)
			require.Equal(t, tc.disallowsAll, res.DisallowsAll)
			require.False(t, res.Indeterminate)
		})
	}
}

type roundTripResult struct {
	resp *http.Response
	err  error
}

type stubRoundTripper struct {
	results []roundTripResult
	calls   int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	defer func() { s.calls++ }()
	if len(s.results) == 0 {
		return nil, context.DeadlineExceeded
	}
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	res := s.results[idx]
	return res.resp, res.err
}
