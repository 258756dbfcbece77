package handlers

import (
	"context"

	"core/providers"
)

func ViaInterface(ctx context.Context, c providers.Completer) {
	c.Complete(ctx, &providers.CompletionRequest{}) // want "direct provider Complete call - use orchestrator.Generate so retries and rate limits apply"
}

func ViaConcrete(ctx context.Context, p *providers.GroqProvider) {
	p.Complete(ctx, nil) // want "direct provider Complete call - use orchestrator.Generate so retries and rate limits apply"
}

type checklist struct{}

func (checklist) Complete(item string) {}

func UnrelatedComplete() {
	checklist{}.Complete("ship it")
}
