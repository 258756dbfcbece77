package providers

import (
	"context"
	"fmt"
)

// ModelCompleter is a Completer that reports its default model.
type ModelCompleter interface {
	Completer
	Model() string
}

// New builds the completer for config.Type.
func New(ctx context.Context, config Config) (ModelCompleter, error) {
	switch config.Type {
	case ProviderTypeGroq, "":
		return NewGroqProvider(config)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(config)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(config)
	case ProviderTypeGoogle:
		return NewGoogleProvider(ctx, config)
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Type)
	}
}

// ParseProviderType validates a provider name. Empty selects Groq.
func ParseProviderType(name string) (ProviderType, error) {
	if name == "" {
		return ProviderTypeGroq, nil
	}
	t := ProviderType(name)
	if _, ok := defaultModels[t]; !ok {
		return "", fmt.Errorf("unknown provider %q", name)
	}
	return t, nil
}
