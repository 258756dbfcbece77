package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqProvider calls Groq's OpenAI-compatible chat completions endpoint.
type GroqProvider struct {
	client *openai.Client
	config Config
}

// NewGroqProvider creates a Groq completer.
func NewGroqProvider(config Config) (*GroqProvider, error) {
	config.Type = ProviderTypeGroq
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(0),
	}
	if config.HTTPTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.HTTPTimeout))
	}

	client := openai.NewClient(opts...)
	return &GroqProvider{client: &client, config: config}, nil
}

func (p *GroqProvider) Name() string {
	return string(ProviderTypeGroq)
}

// Model returns the configured default model.
func (p *GroqProvider) Model() string {
	return p.config.Model
}

func (p *GroqProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	result, err := p.client.Chat.Completions.New(ctx, buildChatParams(p.config, req))
	if err != nil {
		return nil, fmt.Errorf("groq complete: %w", classifyAPIError(ProviderTypeGroq, err))
	}
	return convertChatCompletion(result), nil
}

func buildChatParams(config Config, req *CompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: config.model(req),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		MaxTokens: openai.Int(int64(config.maxTokens(req))),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

func convertChatCompletion(result *openai.ChatCompletion) *CompletionResponse {
	if result == nil || len(result.Choices) == 0 {
		return &CompletionResponse{StopReason: StopReasonError}
	}
	choice := result.Choices[0]
	return &CompletionResponse{
		Text:       choice.Message.Content,
		Model:      result.Model,
		StopReason: convertFinishReason(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int(result.Usage.PromptTokens),
			OutputTokens: int(result.Usage.CompletionTokens),
			TotalTokens:  int(result.Usage.TotalTokens),
		},
	}
}

func convertFinishReason(reason string) StopReason {
	switch reason {
	case "length":
		return StopReasonMaxTokens
	case "content_filter":
		return StopReasonFiltered
	default:
		return StopReasonEndTurn
	}
}
