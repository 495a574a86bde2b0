package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/progress"
	"github.com/JakeFAU/ai-visibility-audit/internal/progress/sinks"
	"github.com/JakeFAU/ai-visibility-audit/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct {
	ids []string
	err error
}

func (g *fakeIDGen) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type testEnv struct {
	store    *memory.Store
	recorder *sinks.Recorder
	server   *Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{store: memory.NewStore(), recorder: sinks.NewRecorder(10)}
	env.server = NewServer(Deps{
		Jobs:      env.store,
		Pages:     env.store,
		Artifacts: env.store,
		IDs:       &fakeIDGen{ids: []string{"job-1", "job-2"}},
		Clock:     fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Gate:      crawler.NewSafetyGate([]string{"blocked.example"}),
		Events:    env.recorder,
	}, opts, zap.NewNop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitAuditCreatesPendingJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/v1/audits", `{
		"target_domain": "https://Acme.com/about",
		"competitor_domains": ["rival.io", " ", "acme.com", "rival.io", "other.net"],
		"locale": "en-US",
		"max_pages_target": 12
	}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "/v1/audits/job-1", rec.Header().Get("Location"))
	require.JSONEq(t, `{"job_id":"job-1","status":"pending"}`, rec.Body.String())

	job, err := env.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "acme.com", job.TargetDomain)
	require.Equal(t, []string{"rival.io", "other.net"}, job.CompetitorDomains)
	require.Equal(t, "en-US", job.Locale)
	require.Equal(t, 12, job.MaxPagesTarget)
	require.Zero(t, job.MaxPagesComp)
	require.Equal(t, crawler.JobStatusPending, job.Status)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), job.CreatedAt)
}

func TestSubmitAuditRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: `{invalid`, want: "invalid JSON"},
		{name: "missing target", body: `{"target_domain":"  "}`, want: "target_domain is required"},
		{name: "unsafe target", body: `{"target_domain":"localhost"}`, want: "rejected"},
		{name: "blocked competitor", body: `{"target_domain":"acme.com","competitor_domains":["blocked.example"]}`, want: "rejected"},
		{
			name: "too many competitors",
			body: `{"target_domain":"acme.com","competitor_domains":["a.com","b.com","c.com"]}`,
			want: "at most 2 competitor domains",
		},
		{name: "non-positive limit", body: `{"target_domain":"acme.com","max_pages_competitor":0}`, want: "page limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, Options{MaxCompetitors: 2})
			rec := env.do(t, http.MethodPost, "/v1/audits", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
			_, err := env.store.GetJob(context.Background(), "job-1")
			require.ErrorIs(t, err, crawler.ErrNotFound)
		})
	}
}

func TestSubmitAuditIDFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	env.server.deps.IDs = &fakeIDGen{err: errors.New("entropy exhausted")}
	rec := env.do(t, http.MethodPost, "/v1/audits", `{"target_domain":"acme.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"failed to create job"}`, rec.Body.String())
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{APIKey: "s3cret"})
	rec := env.do(t, http.MethodGet, "/v1/audits/job-1", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/audits/job-1", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rec = env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code, "probes stay open")
}

func TestGetAuditAndSubresources(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	ctx := context.Background()
	fetched := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	job := crawler.Job{
		ID:           "job-1",
		TargetDomain: "acme.com",
		Status:       crawler.JobStatusGeneratingAudit,
		Progress:     80,
		Debug:        &crawler.DebugSnapshot{InputURL: "acme.com", PagesSucceeded: 1},
	}
	require.NoError(t, env.store.CreateJob(ctx, job))
	require.NoError(t, env.store.SavePage(ctx, crawler.Page{
		JobID: "job-1", URL: "https://acme.com/", Domain: "acme.com", IsTarget: true,
		Title: "Acme", StatusCode: 200, WordCount: 321, DedupKey: "k1", FetchedAt: fetched,
	}))
	require.NoError(t, env.store.PutArtifact(ctx, "job-1", crawler.ArtifactEvidence, []byte(`{"company_profile":{}}`)))
	require.NoError(t, env.recorder.Consume(ctx, []progress.Event{
		{JobID: "job-1", TS: fetched, Kind: progress.KindJobStart},
		{JobID: "job-2", TS: fetched, Kind: progress.KindJobStart},
	}))

	rec := env.do(t, http.MethodGet, "/v1/audits/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Job crawler.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, crawler.JobStatusGeneratingAudit, got.Job.Status)
	assert.Equal(t, 80, got.Job.Progress)

	rec = env.do(t, http.MethodGet, "/v1/audits/job-1/pages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"count":1,"pages":[{"url":"https://acme.com/","domain":"acme.com","is_target":true,
		"title":"Acme","status_code":200,"word_count":321,"fetched_at":"2026-03-01T09:05:00Z"}]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/audits/job-1/debug", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"acme.com"`)

	rec = env.do(t, http.MethodGet, "/v1/audits/job-1/evidence", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"company_profile":{}}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/audits/job-1/document", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"progress_percent":80`)

	rec = env.do(t, http.MethodGet, "/v1/audits/job-1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events struct {
		Events []progress.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events.Events, 1)
	require.Equal(t, progress.KindJobStart, events.Events[0].Kind)
}

func TestDocumentOfFailedJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	require.NoError(t, env.store.CreateJob(context.Background(), crawler.Job{
		ID:     "job-1",
		Status: crawler.JobStatusFailed,
		Error:  "[generating_audit] schema violation",
	}))

	rec := env.do(t, http.MethodGet, "/v1/audits/job-1/document", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"error":"job failed","error_message":"[generating_audit] schema violation"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/audits/job-1/debug", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	for _, path := range []string{"/v1/audits/nope", "/v1/audits/nope/pages", "/v1/audits/nope/events"} {
		rec := env.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		require.JSONEq(t, `{"error":"job not found"}`, rec.Body.String())
	}
}

func TestProbes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env.server.deps.Ready = func(context.Context) error { return errors.New("db down") }
	rec = env.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
