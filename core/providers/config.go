package providers

import (
	"fmt"
	"time"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultMaxTokens   = 7000
)

var defaultModels = map[ProviderType]string{
	ProviderTypeGroq:      "llama-3.3-70b-versatile",
	ProviderTypeOpenAI:    "gpt-4.1",
	ProviderTypeAnthropic: "claude-sonnet-4-5-20250929",
	ProviderTypeGoogle:    "gemini-2.5-pro",
}

// Config selects and configures one provider.
type Config struct {
	Type ProviderType `json:"name" yaml:"name"`

	// APIKey is resolved from the environment or credentials file, never
	// from the main config file.
	APIKey string `json:"-" yaml:"-"`

	Model     string `json:"model" yaml:"model"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens"`

	// HTTPTimeout bounds the transport; per-attempt deadlines come from the
	// caller's context.
	HTTPTimeout time.Duration `json:"http_timeout,omitempty" yaml:"http_timeout,omitempty"`
}

// DefaultConfig returns defaults for the given provider.
func DefaultConfig(t ProviderType) Config {
	cfg := Config{
		Type:      t,
		Model:     defaultModels[t],
		MaxTokens: DefaultMaxTokens,
	}
	if t == ProviderTypeGroq {
		cfg.BaseURL = DefaultGroqBaseURL
	}
	return cfg
}

// DefaultModel returns the default model for a provider.
func DefaultModel(t ProviderType) string {
	return defaultModels[t]
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, ok := defaultModels[c.Type]; !ok {
		return fmt.Errorf("unknown provider %q", c.Type)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s: api key is required", c.Type)
	}
	if c.Model == "" {
		return fmt.Errorf("%s: model is required", c.Type)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%s: max_tokens must be positive", c.Type)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Type)
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	return c
}

func (c Config) model(req *CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.Model
}

func (c Config) maxTokens(req *CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.MaxTokens
}
