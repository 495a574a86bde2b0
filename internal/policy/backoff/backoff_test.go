package backoff

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDelayBounds(t *testing.T) {
	t.Parallel()

	p := New(100*time.Millisecond, 400*time.Millisecond)
	cases := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{attempt: 0, min: 50 * time.Millisecond, max: 100 * time.Millisecond},
		{attempt: 1, min: 50 * time.Millisecond, max: 100 * time.Millisecond},
		{attempt: 2, min: 100 * time.Millisecond, max: 200 * time.Millisecond},
		{attempt: 3, min: 200 * time.Millisecond, max: 400 * time.Millisecond},
		{attempt: 10, min: 200 * time.Millisecond, max: 400 * time.Millisecond},
	}
	for _, tc := range cases {
		for i := 0; i < 20; i++ {
			got := p.Delay(tc.attempt)
			if got < tc.min || got > tc.max {
				t.Fatalf("Delay(%d) = %v, want within [%v,%v]", tc.attempt, got, tc.min, tc.max)
			}
		}
	}
}

func TestSleepHonorsContext(t *testing.T) {
	t.Parallel()

	p := New(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Sleep(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	if Retryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	if Retryable(fmt.Errorf("wrap: %w", context.Canceled)) {
		t.Fatal("cancellation is not retryable")
	}
	if !Retryable(context.DeadlineExceeded) {
		t.Fatal("per-call timeouts are retryable")
	}
	if !Retryable(errors.New("503 from upstream")) {
		t.Fatal("transport errors are retryable")
	}
}
