// Package lease guarantees a single running worker per deployment.
package lease

import (
	"context"
	"errors"
)

// ErrHeld is returned by Acquire when another live process holds the lease.
var ErrHeld = errors.New("lease held by another worker")

// Lease is a single-holder lock around the worker loop.
type Lease interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}
