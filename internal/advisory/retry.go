package advisory

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for generator calls
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryPolicy returns a default retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry returns it without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry executes fn until it succeeds, returns a permanent error, the
// context ends, or the policy's retries are exhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if IsPermanent(err) || attempt >= policy.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(calculateBackoff(policy, attempt)):
		}
	}

	return result, lastErr
}

// calculateBackoff calculates the backoff duration for an attempt
func calculateBackoff(policy RetryPolicy, attempt int) time.Duration {
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(policy.InitialDelay) * math.Pow(multiplier, float64(attempt))

	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	// ±25% jitter
	if policy.Jitter {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}

	return time.Duration(delay)
}
