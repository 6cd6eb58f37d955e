// Package retry provides a small cancellable exponential backoff helper
// shared by transaction submission and finality polling.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Factor multiplies the delay after each attempt.
	Factor float64
	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration
}

// DefaultSubmit matches the submission retry defaults: 3 attempts, 250ms base,
// factor 2, capped at 3s.
func DefaultSubmit() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, Factor: 2, MaxDelay: 3 * time.Second}
}

// Delay returns the delay to wait after the given 1-based attempt number.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping the scheduled delay between
// attempts. It stops early when fn succeeds, when fn reports the error is not
// retryable, or when ctx is cancelled. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (retryable bool, err error)) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		retryable, err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == p.MaxAttempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
