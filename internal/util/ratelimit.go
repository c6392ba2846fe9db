package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces venue status polls so the reconciler stays under the
// venue's request budget. The first call passes immediately; later calls are
// spaced at least the configured interval apart.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	nextAt   time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until the caller's turn arrives or the context is cancelled.
// Turns are handed out in call order.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	at := rl.nextAt
	if at.Before(now) {
		at = now
	}
	rl.nextAt = at.Add(rl.interval)
	rl.mu.Unlock()

	if wait := time.Until(at); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
