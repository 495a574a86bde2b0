// Package backoff provides jittered exponential backoff for remote calls.
package backoff

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Exponential doubles a base delay per attempt up to a ceiling and spreads
// the wait with full jitter over its upper half.
type Exponential struct {
	base time.Duration
	max  time.Duration
}

// New builds a policy; zero values fall back to 500ms base and 4s ceiling.
func New(base, maxDelay time.Duration) *Exponential {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if maxDelay < base {
		maxDelay = 4 * time.Second
	}
	return &Exponential{base: base, max: maxDelay}
}

// Delay returns the wait before attempt (1-based) is retried.
func (p *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.base) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.max) {
		delay = float64(p.max)
	}
	half := time.Duration(delay / 2)
	return half + jitter(half)
}

// Sleep waits for Delay(attempt) or until ctx is done.
func (p *Exponential) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retryable reports whether err is worth another attempt; caller
// cancellation never is.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
