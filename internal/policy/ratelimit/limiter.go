// Package ratelimit enforces a fixed pause after every fetch of a crawl.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one drained token bucket per crawl scope (usually a domain).
// Done starts a fresh bucket with its only token spent, so the following
// Wait blocks for the full delay measured from the end of the last fetch,
// however long that fetch took.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// New creates a Limiter pausing delay after each fetch. A non-positive delay
// disables throttling.
func New(delay time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until the delay since the last Done for scope has passed. A
// scope with no finished fetch is not delayed.
func (l *Limiter) Wait(ctx context.Context, scope string) error {
	l.mu.Lock()
	limiter, ok := l.limiters[key(scope)]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Done marks the end of a fetch in scope.
func (l *Limiter) Done(scope string) {
	if l.limit == rate.Inf {
		return
	}
	limiter := rate.NewLimiter(l.limit, 1)
	limiter.AllowN(time.Now(), 1)
	l.mu.Lock()
	l.limiters[key(scope)] = limiter
	l.mu.Unlock()
}

// Forget drops the state for scope once its crawl is over.
func (l *Limiter) Forget(scope string) {
	l.mu.Lock()
	delete(l.limiters, key(scope))
	l.mu.Unlock()
}

// Len reports how many scopes currently hold state.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func key(scope string) string {
	return strings.ToLower(strings.TrimSpace(scope))
}
