// Package progress carries audit job milestones from the worker to
// pluggable sinks (logs, metrics, the in-memory event recorder) through a
// non-blocking hub that batches on a background goroutine.
package progress
