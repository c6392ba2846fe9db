package util

import (
	"context"
	"time"
)

// Retry runs fn up to maxAttempts times, doubling the wait between attempts
// starting from baseDelay. The reconciler uses it to ride out brief venue
// outages. Returns nil once fn succeeds, the context error if cancelled
// while waiting, or fn's last error after the final attempt.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
