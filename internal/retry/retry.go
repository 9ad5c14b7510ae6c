// Package retry repeats failing operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls Do.
type Policy struct {
	// Attempts is the total number of tries, at least 1.
	Attempts int
	// Backoff is the wait before the second try; it doubles after each failure.
	Backoff time.Duration
	// Retryable reports whether err is worth another try. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts.
// It returns the number of attempts made.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) (int, error) {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return attempt, err
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff << (attempt - 1)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		}
	}

	if attempts == 1 {
		return attempts, lastErr
	}
	return attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
