// Package retry implements the linear backoff policy shared by item fetches,
// collection metadata lookups and cover art downloads.
//
//	p := retry.Policy{BaseDelay: time.Second, MaxAttempts: 5}
//	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
//	    return fetchOnce(ctx)
//	}, nil)
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Do after the last attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// DefaultMaxAttempts is used when a Policy has no positive MaxAttempts.
const DefaultMaxAttempts = 5

// Policy describes how many times an operation is attempted and how long
// to wait between attempts.
type Policy struct {
	// BaseDelay is the backoff unit. The wait after attempt n is BaseDelay*n.
	BaseDelay time.Duration

	// MaxAttempts bounds the number of attempts, including the first one.
	MaxAttempts int
}

// Attempts returns the effective attempt bound.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// WithAttempts returns a copy of p bounded to n attempts.
func (p Policy) WithAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// Delay returns the wait before the attempt that follows attempt.
// attempt is 1-indexed; values below 1 yield no wait.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay * time.Duration(attempt)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d == 0 {
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

// Do runs fn until it succeeds or the attempt bound is reached.
//
// Attempts are strictly sequential. onFailure, if not nil, is called after
// each failed attempt and before the backoff wait, which makes it the place
// to discard any partial artifact of that attempt. No wait happens after
// the last attempt.
//
// The returned error matches ErrExhausted and wraps the last failure.
// A cancelled ctx stops the loop and its error is returned as is.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, onFailure func(attempt int, err error)) error {
	maxAttempts := p.Attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if onFailure != nil {
			onFailure(attempt, lastErr)
		}

		if attempt == maxAttempts {
			break
		}
		if err := p.Wait(ctx, attempt); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}
