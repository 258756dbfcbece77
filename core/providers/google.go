package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleProvider calls the Gemini API.
type GoogleProvider struct {
	client *genai.Client
	config Config
}

// NewGoogleProvider creates a Gemini completer.
func NewGoogleProvider(ctx context.Context, config Config) (*GoogleProvider, error) {
	config.Type = ProviderTypeGoogle
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = config.BaseURL
	}
	if config.HTTPTimeout > 0 {
		timeout := config.HTTPTimeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("google client: %w", err)
	}
	return &GoogleProvider{client: client, config: config}, nil
}

func (p *GoogleProvider) Name() string {
	return string(ProviderTypeGoogle)
}

func (p *GoogleProvider) Model() string {
	return p.config.Model
}

func (p *GoogleProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		MaxOutputTokens:   int32(p.config.maxTokens(req)),
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}

	model := p.config.model(req)
	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.User), cfg)
	if err != nil {
		return nil, fmt.Errorf("google complete: %w", classifyAPIError(ProviderTypeGoogle, err))
	}
	return convertGenerateContent(model, resp), nil
}

func convertGenerateContent(model string, resp *genai.GenerateContentResponse) *CompletionResponse {
	if resp == nil {
		return &CompletionResponse{Model: model, StopReason: StopReasonError}
	}
	out := &CompletionResponse{
		Text:       resp.Text(),
		Model:      model,
		StopReason: StopReasonEndTurn,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonMaxTokens:
			out.StopReason = StopReasonMaxTokens
		case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist:
			out.StopReason = StopReasonFiltered
		}
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out
}
