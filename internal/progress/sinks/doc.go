// Package sinks implements progress consumers: structured logs, Prometheus
// counters and a bounded per-job recorder the HTTP API reads from.
package sinks
