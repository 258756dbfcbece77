package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adalundhe/architect/core/orchestrator"
)

// APIError is the error body of a failed request.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      string `json:"details,omitempty"`
	RetryAfterMS int    `json:"retry_after_ms,omitempty"`
}

const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

func RespondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": APIError{Code: code, Message: message}})
}

func BadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// statusFor maps a result to an HTTP status.
func statusFor(r orchestrator.GenerationResult) int {
	if r.Succeeded {
		return http.StatusOK
	}
	switch r.FailureReason {
	case orchestrator.FailureEmptyInput:
		return http.StatusBadRequest
	case orchestrator.FailureUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case orchestrator.FailureUpstreamRejected, orchestrator.FailureMalformedResponse:
		return http.StatusBadGateway
	case orchestrator.FailureCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GenerationResponse wraps a result with an error body when it failed.
type GenerationResponse struct {
	Result orchestrator.GenerationResult `json:"result"`
	Error  *APIError                     `json:"error,omitempty"`
}

func respondResult(c *gin.Context, r orchestrator.GenerationResult) {
	resp := GenerationResponse{Result: r}
	if !r.Succeeded {
		resp.Error = &APIError{
			Code:    string(r.FailureReason),
			Message: r.FailureReason.UserMessage(),
			Details: r.Error,
		}
		if r.FailureReason == orchestrator.FailureUpstreamUnavailable {
			resp.Error.RetryAfterMS = 5000
		}
	}
	c.JSON(statusFor(r), resp)
}
