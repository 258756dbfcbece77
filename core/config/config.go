package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/adalundhe/architect/core/cache"
	"github.com/adalundhe/architect/core/classifier"
	coreerrors "github.com/adalundhe/architect/core/errors"
	"github.com/adalundhe/architect/core/observability"
	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/request"
)

type Config struct {
	Provider     providers.Config     `yaml:"provider"`
	Generation   GenerationConfig     `yaml:"generation"`
	Normalizer   NormalizerConfig     `yaml:"normalizer"`
	Classifier   classifier.Policy    `yaml:"classifier"`
	Orchestrator OrchestratorConfig   `yaml:"orchestrator"`
	Cache        CacheConfig          `yaml:"cache"`
	Log          observability.Config `yaml:"log"`
	Ledger       LedgerConfig         `yaml:"ledger"`
	Server       ServerConfig         `yaml:"server"`
}

type GenerationConfig struct {
	BuildTemperature    float64 `yaml:"build_temperature"`
	FixTemperature      float64 `yaml:"fix_temperature"`
	DocumentTemperature float64 `yaml:"document_temperature"`
}

type NormalizerConfig struct {
	MaxLength           int `yaml:"max_length"`
	MaxAttachmentLength int `yaml:"max_attachment_length"`
}

type OrchestratorConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	JitterPercent  float64       `yaml:"jitter_percent"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateBurst      int           `yaml:"rate_burst"`
	// Errors overrides how provider failures are sorted into retryable and
	// rejected.
	Errors *coreerrors.ErrorClassifierConfig `yaml:"errors,omitempty"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

type LedgerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path defaults to generations.db under the data directory.
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func DefaultConfig() *Config {
	retry := coreerrors.DefaultRetryPolicy()
	orch := orchestrator.DefaultConfig()
	resultCache := cache.DefaultConfig()
	return &Config{
		// Model and base URL stay empty so switching provider picks that
		// provider's defaults.
		Provider: providers.Config{Type: providers.ProviderTypeGroq, MaxTokens: providers.DefaultMaxTokens},
		Generation: GenerationConfig{
			BuildTemperature:    orch.Temperatures[request.KindBuild],
			FixTemperature:      orch.Temperatures[request.KindFix],
			DocumentTemperature: orch.Temperatures[request.KindDocument],
		},
		Normalizer: NormalizerConfig{
			MaxLength:           request.DefaultMaxLength,
			MaxAttachmentLength: request.DefaultMaxAttachmentLength,
		},
		Classifier: classifier.DefaultPolicy(),
		Orchestrator: OrchestratorConfig{
			Timeout:        orch.Timeout,
			MaxRetries:     retry.MaxRetries,
			InitialBackoff: retry.InitialDelay,
			MaxBackoff:     retry.MaxDelay,
			Multiplier:     retry.Multiplier,
			JitterPercent:  retry.JitterPercent,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: resultCache.MaxEntries,
			TTL:        resultCache.TTL,
		},
		Log:    observability.DefaultConfig(),
		Ledger: LedgerConfig{Enabled: true},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8501",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := providers.ParseProviderType(string(c.Provider.Type)); err != nil {
		errs = append(errs, fmt.Errorf("provider.name: %w", err))
	}
	if c.Provider.MaxTokens <= 0 {
		errs = append(errs, errors.New("provider.max_tokens must be positive"))
	}
	if err := c.Classifier.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("classifier: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, t := range map[string]float64{
		"build_temperature":    c.Generation.BuildTemperature,
		"fix_temperature":      c.Generation.FixTemperature,
		"document_temperature": c.Generation.DocumentTemperature,
	} {
		if t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("generation.%s: %v outside [0, 2]", name, t))
		}
	}
	if c.Normalizer.MaxLength < 0 || c.Normalizer.MaxAttachmentLength < 0 {
		errs = append(errs, errors.New("normalizer: limits must not be negative"))
	}
	o := c.Orchestrator
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("orchestrator.timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, errors.New("orchestrator.max_retries must not be negative"))
	}
	if o.Multiplier < 1 {
		errs = append(errs, errors.New("orchestrator.multiplier must be at least 1"))
	}
	if o.MaxBackoff < o.InitialBackoff {
		errs = append(errs, errors.New("orchestrator.max_backoff is below initial_backoff"))
	}
	if o.JitterPercent < 0 || o.JitterPercent > 1 {
		errs = append(errs, errors.New("orchestrator.jitter_percent outside [0, 1]"))
	}
	if o.RateLimitRPS < 0 {
		errs = append(errs, errors.New("orchestrator.rate_limit_rps must not be negative"))
	}
	if c.Cache.Enabled && (c.Cache.MaxEntries <= 0 || c.Cache.TTL <= 0) {
		errs = append(errs, errors.New("cache: max_entries and ttl must be positive when enabled"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Orchestrator.Errors != nil {
		if _, err := coreerrors.NewErrorClassifierFromConfig(c.Orchestrator.Errors); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator.errors: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the orchestrator section.
func (c *Config) RetryPolicy() coreerrors.RetryPolicy {
	p := coreerrors.DefaultRetryPolicy()
	p.MaxRetries = c.Orchestrator.MaxRetries
	p.InitialDelay = c.Orchestrator.InitialBackoff
	p.MaxDelay = c.Orchestrator.MaxBackoff
	p.Multiplier = c.Orchestrator.Multiplier
	p.JitterPercent = c.Orchestrator.JitterPercent
	return p
}

// OrchestratorConfig converts the orchestrator and generation sections.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Timeout:      c.Orchestrator.Timeout,
		Retry:        c.RetryPolicy(),
		RateLimitRPS: c.Orchestrator.RateLimitRPS,
		RateBurst:    c.Orchestrator.RateBurst,
		Errors:       c.Orchestrator.Errors,
		Model:        c.Provider.Model,
		MaxTokens:    c.Provider.MaxTokens,
		Temperatures: map[request.Kind]float64{
			request.KindBuild:    c.Generation.BuildTemperature,
			request.KindFix:      c.Generation.FixTemperature,
			request.KindDocument: c.Generation.DocumentTemperature,
		},
	}
}

// ResultCacheConfig converts the cache section.
func (c *Config) ResultCacheConfig() cache.Config {
	return cache.Config{MaxEntries: c.Cache.MaxEntries, TTL: c.Cache.TTL}
}

// RequestNormalizer builds the configured normalizer.
func (c *Config) RequestNormalizer() request.Normalizer {
	return request.NewNormalizer(c.Normalizer.MaxLength, c.Normalizer.MaxAttachmentLength)
}
