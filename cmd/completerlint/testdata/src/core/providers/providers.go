package providers

import "context"

type CompletionRequest struct{ User string }

type CompletionResponse struct{ Text string }

type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

type GroqProvider struct{}

func (p *GroqProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{}, nil
}

func Ping(ctx context.Context, p *GroqProvider) error {
	_, err := p.Complete(ctx, &CompletionRequest{User: "ping"})
	return err
}
