// ABOUTME: Retry logic with exponential backoff and jitter for generator calls.
// ABOUTME: RetryPolicy decides retryability from the error chain and honors RetryAfter hints.

package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures how retry behavior works for LLM API calls.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (not counting the initial call).
	MaxRetries int

	// BaseDelay is the initial delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay is the upper bound on the delay between retries.
	MaxDelay time.Duration

	// BackoffMultiplier controls exponential growth of the delay between retries.
	BackoffMultiplier float64

	// Jitter randomizes each delay between 0 and the computed backoff.
	Jitter bool

	// OnRetry is invoked before each retry with the triggering error, the
	// 0-indexed attempt number, and the delay about to be applied.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns 2 retries, 1s base delay, 20s max delay, 2x
// backoff, jitter enabled. The fallback chain has later stages to fall back
// on, so generator calls are retried sparingly.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         time.Second,
		MaxDelay:          20 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// NoRetry returns a policy that never retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// CalculateDelay computes the delay for a given retry attempt using exponential
// backoff, capped at MaxDelay.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delayFloat := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delayFloat > float64(p.MaxDelay) {
		delayFloat = float64(p.MaxDelay)
	}
	delay := time.Duration(delayFloat)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// ShouldRetry reports whether err is retryable and attempts remain.
// Errors with no *Error in their chain are not retried.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	return KindOf(err).Retryable()
}

// Retry executes fn under the given policy. A RetryAfter hint on an *Error is
// used as the minimum delay. Context cancellation stops retrying and
// returns the last error.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !policy.ShouldRetry(err, attempt) {
			return err
		}

		delay := applyRetryAfter(err, policy.CalculateDelay(attempt))
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// applyRetryAfter returns the greater of the calculated delay and the error's
// RetryAfter hint.
func applyRetryAfter(err error, calculated time.Duration) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter != nil {
		hinted := time.Duration(*e.RetryAfter * float64(time.Second))
		if hinted > calculated {
			return hinted
		}
	}
	return calculated
}
