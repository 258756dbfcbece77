package orchestrator

import (
	"context"

	"core/providers"
)

func Generate(ctx context.Context, c providers.Completer) (string, error) {
	resp, err := c.Complete(ctx, &providers.CompletionRequest{User: "build a calculator"})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
