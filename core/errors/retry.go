package errors

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often and how patiently a failed call is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	InitialDelay time.Duration `yaml:"initial_backoff"`
	MaxDelay     time.Duration `yaml:"max_backoff"`

	// Multiplier is the backoff growth factor (default: 2.0).
	Multiplier float64 `yaml:"multiplier"`

	// UseRetryAfter honors the upstream Retry-After hint on rate limits.
	UseRetryAfter bool `yaml:"use_retry_after"`

	// JitterPercent is the jitter fraction (0.1 for ±10%).
	JitterPercent float64 `yaml:"jitter_percent"`
}

// DefaultRetryPolicy returns the policy used for outbound model calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		Multiplier:    2.0,
		UseRetryAfter: true,
		JitterPercent: 0.1,
	}
}

// CalculateDelay computes initial * multiplier^attempt, capped at MaxDelay.
func CalculateDelay(attempt int, policy RetryPolicy) time.Duration {
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := time.Duration(float64(policy.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		return policy.MaxDelay
	}
	return delay
}

// AddJitter shifts delay by a random ±jitterPercent, never below 1ms.
func AddJitter(delay time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 || delay <= 0 {
		return delay
	}
	offset := (rand.Float64()*2 - 1) * float64(delay) * jitterPercent
	jittered := time.Duration(float64(delay) + offset)
	if jittered < time.Millisecond {
		return time.Millisecond
	}
	return jittered
}

// RetryExecutor runs an operation until it succeeds, fails with a
// non-retryable error, or exhausts the policy.
type RetryExecutor struct {
	policy     RetryPolicy
	classifier *ErrorClassifier
	wait       func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates an executor. A nil classifier uses the defaults.
func NewRetryExecutor(policy RetryPolicy, classifier *ErrorClassifier) *RetryExecutor {
	if classifier == nil {
		classifier = NewErrorClassifier()
	}
	return &RetryExecutor{
		policy:     policy,
		classifier: classifier,
		wait:       waitBeforeRetry,
	}
}

// Policy returns the executor's policy.
func (e *RetryExecutor) Policy() RetryPolicy {
	return e.policy
}

// Execute calls fn at most MaxRetries+1 times. It returns the number of
// attempts made and the last error. Waiting stops early when ctx is done.
func (e *RetryExecutor) Execute(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		attempts++
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempts, nil
		}
		if ctx.Err() != nil {
			return attempts, lastErr
		}
		if !e.classifier.Classify(lastErr).Retryable() || attempt == e.policy.MaxRetries {
			return attempts, lastErr
		}
		if err := e.wait(ctx, e.computeDelay(lastErr, attempt)); err != nil {
			return attempts, lastErr
		}
	}

	return attempts, lastErr
}

func (e *RetryExecutor) computeDelay(err error, attempt int) time.Duration {
	if e.policy.UseRetryAfter {
		if te, ok := asTiered(err); ok && te.Tier == TierExternalRateLimit && te.RetryAfter > 0 {
			if e.policy.MaxDelay > 0 && te.RetryAfter > e.policy.MaxDelay {
				return e.policy.MaxDelay
			}
			return te.RetryAfter
		}
	}
	return AddJitter(CalculateDelay(attempt, e.policy), e.policy.JitterPercent)
}

func asTiered(err error) (*TieredError, bool) {
	var te *TieredError
	ok := errors.As(err, &te)
	return te, ok
}

func waitBeforeRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
