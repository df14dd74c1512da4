package llm

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff for transport retries.
type RetryPolicy struct {
	MaxRetries int           // attempts after the initial call
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff ceiling
	Multiplier float64       // backoff growth factor
	Jitter     bool          // randomize delay by +/- 50%
	OnRetry    func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the policy used by NewGollmClient.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay computes the backoff for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64() // [0.5x, 1.5x)
	}
	return time.Duration(d)
}

// Retry runs fn, retrying retryable errors per the policy. A non-retryable
// error or context cancellation returns immediately.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if !IsRetryable(err) {
			return zero, err
		}
		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}
		select {
		case <-ctx.Done():
			return zero, &TransportError{
				Kind:    KindTimeout,
				Message: "cancelled while waiting to retry",
				Cause:   ctx.Err(),
			}
		case <-time.After(delay):
		}
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}
	return zero, err
}
