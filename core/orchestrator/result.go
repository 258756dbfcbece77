// Package orchestrator sends assembled prompts to the completion service and
// turns whatever comes back into a typed GenerationResult.
package orchestrator

import (
	"time"

	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/request"
)

// FailureReason says why a generation did not succeed.
type FailureReason string

const (
	FailureNone FailureReason = ""
	// FailureUpstreamUnavailable means retries were exhausted on transient
	// failures.
	FailureUpstreamUnavailable FailureReason = "UPSTREAM_UNAVAILABLE"
	// FailureUpstreamRejected means the service refused the call (auth,
	// quota, bad request). It is an operator problem and is not retried.
	FailureUpstreamRejected FailureReason = "UPSTREAM_REJECTED"
	// FailureMalformedResponse means the reply lacked the expected shape.
	FailureMalformedResponse FailureReason = "MALFORMED_RESPONSE"
	FailureEmptyInput        FailureReason = "EMPTY_INPUT"
	FailureTemplateMissing   FailureReason = "TEMPLATE_MISSING"
	FailureCanceled          FailureReason = "CANCELED"
)

var userMessages = map[FailureReason]string{
	FailureUpstreamUnavailable: "The code generation service is unavailable right now. Please try again.",
	FailureUpstreamRejected:    "The code generation service rejected the request. Check the API key, quota and model settings.",
	FailureMalformedResponse:   "The model replied without usable output. The raw reply is available for inspection.",
	FailureEmptyInput:          "Please describe what you want to build.",
	FailureTemplateMissing:     "Internal error: no prompt template for this request.",
	FailureCanceled:            "The request was canceled.",
}

// UserMessage is the text shown to the person who made the request.
func (r FailureReason) UserMessage() string {
	return userMessages[r]
}

// CodeBlock is one fenced block from a reply.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// GenerationResult is the outcome of one pipeline invocation. It is never
// accompanied by an error value; failures are described by FailureReason.
type GenerationResult struct {
	Content       string          `json:"content"`
	Mode          request.Mode    `json:"mode"`
	Kind          request.Kind    `json:"kind"`
	Succeeded     bool            `json:"succeeded"`
	FailureReason FailureReason   `json:"failure_reason,omitempty"`
	Error         string          `json:"error,omitempty"`
	Raw           string          `json:"raw,omitempty"`
	CodeBlocks    []CodeBlock     `json:"code_blocks,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	Attempts      int             `json:"attempts"`
	Usage         providers.Usage `json:"usage"`
	Model         string          `json:"model,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	CacheHit      bool            `json:"cache_hit"`
	Latency       time.Duration   `json:"latency"`
}

// Failure builds a failed result.
func Failure(mode request.Mode, kind request.Kind, reason FailureReason, err error) GenerationResult {
	r := GenerationResult{
		Mode:          mode,
		Kind:          kind,
		FailureReason: reason,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
