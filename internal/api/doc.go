// Package api hosts the HTTP server for submitting and inspecting audits.
// Notable routes:
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - POST /v1/audits submits a job; the worker picks it up.
//   - GET /v1/audits/{job_id} and its /pages, /debug, /evidence, /document
//     and /events sub-resources expose progress and results.
package api
