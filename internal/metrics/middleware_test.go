package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/audits/{jobID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/v1/audits/{jobID}/document", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	conflicts := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "409"))
	for _, path := range []string{"/v1/audits/job-1", "/v1/audits/job-2/document"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, conflicts+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "409")), 0)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))

	// Routes are labeled by pattern so job IDs do not explode cardinality.
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	routes := map[string]bool{}
	for _, mf := range families {
		if mf.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "route" {
					routes[lp.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, routes["/v1/audits/{jobID}"])
	assert.True(t, routes["/v1/audits/{jobID}/document"])
	assert.False(t, routes["/v1/audits/job-1"])
}
