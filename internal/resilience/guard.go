// Package resilience provides the composable primitives that protect calls to
// the Google Drive API: failure classification, retry with exponential backoff,
// token-bucket rate limiting, and a three-state circuit breaker.
//
// Each primitive implements Guard and can be nested with Compose. The drive
// facade composes them breaker-outermost so that an open circuit fails fast
// before any retry or token is spent.
package resilience

import (
	"context"
	"time"
)

// Operation is a unit of work that may fail and may be re-invoked.
type Operation func(ctx context.Context) error

// Guard wraps an operation with a cross-cutting behavior. Implementations must
// return the operation's error unchanged unless they short-circuit it.
type Guard interface {
	Do(ctx context.Context, op Operation) error
}

// Compose nests guards so the first listed is outermost. Compose() with no
// guards returns a pass-through.
func Compose(guards ...Guard) Guard {
	return composed(guards)
}

type composed []Guard

func (c composed) Do(ctx context.Context, op Operation) error {
	if len(c) == 0 {
		return op(ctx)
	}
	head, rest := c[0], composed(c[1:])
	return head.Do(ctx, func(ctx context.Context) error {
		return rest.Do(ctx, op)
	})
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
