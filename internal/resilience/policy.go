package resilience

import (
	"context"
	"time"
)

// Policy combines the retry schedule with per-service circuit breakers.
type Policy struct {
	Retry    RetryConfig
	Breakers *Breakers
}

// NewPolicy builds a Policy from raw config values; zero values take defaults.
func NewPolicy(maxAttempts, initialBackoffMs, maxBackoffMs, failureThreshold, resetTimeoutSecs int) *Policy {
	retry := DefaultRetryConfig()
	if maxAttempts > 0 {
		retry.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}

	breaker := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		breaker.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		breaker.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return &Policy{Retry: retry, Breakers: NewBreakers(breaker)}
}

// Call runs fn under service's breaker with retries. Only transient failures
// that survive all retries count against the breaker. A nil policy calls fn once.
func Call[T any](ctx context.Context, p *Policy, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}

	var zero T
	cb := p.Breakers.Get(service)
	if err := cb.Allow(); err != nil {
		return zero, err
	}

	retry := p.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger("loadmap", service)
	}
	val, err := DoVal(ctx, retry, fn)
	if ctx.Err() != nil {
		return val, err
	}
	shouldRetry := retry.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}
	if err != nil && shouldRetry(err) {
		cb.Record(err)
	} else {
		// Business-level rejections mean the backend is healthy.
		cb.Record(nil)
	}
	return val, err
}
