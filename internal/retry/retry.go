// Package retry applies a bounded exponential backoff policy around a
// single transient operation.
package retry

import (
	"context"
	"time"

	"shuttle/internal/services"
)

// Policy describes backoff behavior for a retried operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
}

// DefaultPolicy mirrors the dispatch configuration defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.Multiplier < 2 {
		p.Multiplier = 2
	}
	return p
}

// Do invokes fn until it succeeds, exhausts the attempt budget, returns a
// permanent error, or ctx is cancelled. The delay between attempts doubles
// (per Multiplier) starting from BaseDelay. The last error is returned once
// attempts are exhausted.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	policy = policy.normalized()

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !services.Retryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= time.Duration(policy.Multiplier)
	}
	return lastErr
}
