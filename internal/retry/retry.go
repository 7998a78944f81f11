// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Class partitions failures into those worth another attempt and those
// that must surface immediately.
type Class int

const (
	// Retryable marks transient failures: network errors, timeouts,
	// service unavailability.
	Retryable Class = iota
	// Terminal marks failures no retry can fix: invalid credentials,
	// permission denials, malformed requests.
	Terminal
)

// Classifier decides the class of an error between attempts.
type Classifier func(error) Class

// Default policy values applied when a Policy field is zero.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMultiplier  = 2.0
)

// Policy configures the retry loop. The zero value is usable and applies
// the defaults with every error treated as retryable.
type Policy struct {
	// MaxAttempts bounds total invocations, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
	// Classify decides whether an error is worth another attempt. Nil
	// means everything is retryable.
	Classify Classifier
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// delay returns BaseDelay * Multiplier^attemptIndex.
func (p Policy) delay(attemptIndex int) time.Duration {
	scaled := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attemptIndex))
	if scaled > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

// Do invokes op until it succeeds, a Terminal error occurs, the attempt
// budget is exhausted, or ctx is cancelled during a backoff wait. The last
// underlying error is returned unwrapped so callers can still inspect the
// root cause.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, p.delay(attempt-1)); err != nil {
				return zero, err
			}
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if p.Classify != nil && p.Classify(err) == Terminal {
			return zero, err
		}
	}

	return zero, lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
