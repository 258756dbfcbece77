// Package errors classifies upstream failures into tiers and drives retry
// decisions for outbound model calls.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorTier represents the classification tier for errors.
type ErrorTier int

const (
	// TierTransient covers network timeouts and dropped connections.
	TierTransient ErrorTier = iota

	// TierPermanent covers rejections that will not change on retry:
	// bad credentials, malformed requests, exhausted quota.
	TierPermanent

	// TierUserFixable covers local setup problems such as a missing API key.
	TierUserFixable

	// TierExternalRateLimit covers HTTP 429 responses.
	TierExternalRateLimit

	// TierExternalDegrading covers 5xx responses and overloaded upstreams.
	TierExternalDegrading
)

var tierNames = map[ErrorTier]string{
	TierTransient:         "transient",
	TierPermanent:         "permanent",
	TierUserFixable:       "user_fixable",
	TierExternalRateLimit: "external_rate_limit",
	TierExternalDegrading: "external_degrading",
}

func (t ErrorTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether errors of this tier may succeed on a later attempt.
func (t ErrorTier) Retryable() bool {
	switch t {
	case TierTransient, TierExternalRateLimit, TierExternalDegrading:
		return true
	default:
		return false
	}
}

// TieredError wraps an error with tier classification.
type TieredError struct {
	Tier       ErrorTier
	Message    string
	Underlying error
	StatusCode int
	RetryAfter time.Duration
	Provider   string
}

func (e *TieredError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Tier, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Tier, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TieredError) Unwrap() error {
	return e.Underlying
}

// Is matches any TieredError of the same tier.
func (e *TieredError) Is(target error) bool {
	var te *TieredError
	if errors.As(target, &te) {
		return e.Tier == te.Tier
	}
	return false
}

// NewTieredError creates a new TieredError with the given tier and message.
func NewTieredError(tier ErrorTier, message string, underlying error) *TieredError {
	return &TieredError{
		Tier:       tier,
		Message:    message,
		Underlying: underlying,
	}
}

// WithStatusCode adds an HTTP status code to the error.
func (e *TieredError) WithStatusCode(code int) *TieredError {
	e.StatusCode = code
	return e
}

// WithRetryAfter adds a retry-after duration to the error.
func (e *TieredError) WithRetryAfter(d time.Duration) *TieredError {
	e.RetryAfter = d
	return e
}

// WithProvider records which upstream produced the error.
func (e *TieredError) WithProvider(name string) *TieredError {
	e.Provider = name
	return e
}

// GetTier extracts the ErrorTier from an error, defaulting to Permanent.
func GetTier(err error) ErrorTier {
	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}
	return TierPermanent
}

var (
	ErrTimeout = NewTieredError(TierTransient, "operation timed out", nil)

	ErrUnauthorized = NewTieredError(TierPermanent, "unauthorized", nil).WithStatusCode(http.StatusUnauthorized)
	ErrForbidden    = NewTieredError(TierPermanent, "forbidden", nil).WithStatusCode(http.StatusForbidden)

	ErrMissingAPIKey = NewTieredError(TierUserFixable, "missing API key", nil)

	ErrServiceUnavailable = NewTieredError(TierExternalDegrading, "service unavailable", nil).WithStatusCode(http.StatusServiceUnavailable)
)

// WrapWithTier wraps an error with a tier classification. An existing
// TieredError keeps its tier and status.
func WrapWithTier(tier ErrorTier, message string, err error) error {
	if err == nil {
		return nil
	}

	var te *TieredError
	if errors.As(err, &te) {
		return &TieredError{
			Tier:       te.Tier,
			Message:    message,
			Underlying: err,
			StatusCode: te.StatusCode,
			RetryAfter: te.RetryAfter,
			Provider:   te.Provider,
		}
	}

	return NewTieredError(tier, message, err)
}
