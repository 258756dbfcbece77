// Package providers adapts hosted text-completion services to a single
// request/response contract.
package providers

import (
	"context"
)

// ProviderType identifies a completion service.
type ProviderType string

const (
	ProviderTypeGroq      ProviderType = "groq"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeGoogle    ProviderType = "google"
)

// ProviderTypes lists the supported providers.
func ProviderTypes() []ProviderType {
	return []ProviderType{ProviderTypeGroq, ProviderTypeOpenAI, ProviderTypeAnthropic, ProviderTypeGoogle}
}

// Completer is one outbound call to a completion service. Implementations do
// not retry; the caller owns retry policy.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

type CompletionRequest struct {
	System      string   `json:"system"`
	User        string   `json:"user"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type CompletionResponse struct {
	Text       string     `json:"text"`
	Model      string     `json:"model"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonFiltered  StopReason = "filtered"
	StopReasonError     StopReason = "error"
)

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 {
	return &v
}
