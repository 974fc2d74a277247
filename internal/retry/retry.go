// Package retry runs an operation a bounded number of times with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how many attempts to make and how long to wait between them.
// The delay before attempt n (n >= 1) is BaseDelay * 2^(n-1).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy makes three attempts starting at one second
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Do calls fn until it succeeds, the attempts are exhausted, or ctx is done.
// onError, when non-nil, is called after every failed attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, onError func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, backoffDelay(p.BaseDelay, attempt)); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if onError != nil {
			onError(attempt+1, err)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
