package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIProvider calls OpenAI's Responses API.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates an OpenAI completer.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	config.Type = ProviderTypeOpenAI
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.HTTPTimeout))
	}

	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, config: config}, nil
}

func (p *OpenAIProvider) Name() string {
	return string(ProviderTypeOpenAI)
}

func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	params := responses.ResponseNewParams{
		Model:           p.config.model(req),
		Instructions:    openai.String(req.System),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.User)},
		MaxOutputTokens: openai.Int(int64(p.config.maxTokens(req))),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	result, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai complete: %w", classifyAPIError(ProviderTypeOpenAI, err))
	}
	return convertResponse(result), nil
}

func convertResponse(result *responses.Response) *CompletionResponse {
	if result == nil {
		return &CompletionResponse{StopReason: StopReasonError}
	}
	return &CompletionResponse{
		Text:       result.OutputText(),
		Model:      result.Model,
		StopReason: convertResponseStopReason(result),
		Usage: Usage{
			InputTokens:  int(result.Usage.InputTokens),
			OutputTokens: int(result.Usage.OutputTokens),
			TotalTokens:  int(result.Usage.TotalTokens),
		},
	}
}

func convertResponseStopReason(result *responses.Response) StopReason {
	switch result.IncompleteDetails.Reason {
	case "max_output_tokens":
		return StopReasonMaxTokens
	case "content_filter":
		return StopReasonFiltered
	}
	if result.Error.Message != "" {
		return StopReasonError
	}
	return StopReasonEndTurn
}
