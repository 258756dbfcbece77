package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	coreerrors "github.com/adalundhe/architect/core/errors"
	"github.com/adalundhe/architect/core/prompt"
	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/request"
)

// Config carries the injected call policy.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration

	Retry coreerrors.RetryPolicy

	// RateLimitRPS paces outbound calls. Zero disables pacing.
	RateLimitRPS float64
	RateBurst    int

	// Model overrides the completer's default model when set.
	Model     string
	MaxTokens int

	Temperatures map[request.Kind]float64

	// Errors replaces the default failure classification patterns.
	Errors *coreerrors.ErrorClassifierConfig
}

// DefaultConfig returns the default call policy.
func DefaultConfig() Config {
	return Config{
		Timeout:   90 * time.Second,
		Retry:     coreerrors.DefaultRetryPolicy(),
		MaxTokens: providers.DefaultMaxTokens,
		Temperatures: map[request.Kind]float64{
			request.KindBuild:    0.1,
			request.KindFix:      0.3,
			request.KindDocument: 0.2,
		},
	}
}

// Orchestrator performs generation calls against one completer.
type Orchestrator struct {
	completer  providers.Completer
	config     Config
	retry      *coreerrors.RetryExecutor
	classifier *coreerrors.ErrorClassifier
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New creates an Orchestrator. Zero fields in cfg take their defaults.
func New(completer providers.Completer, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperatures == nil {
		cfg.Temperatures = defaults.Temperatures
	}

	classifier := coreerrors.NewErrorClassifier()
	if cfg.Errors != nil {
		custom, err := coreerrors.NewErrorClassifierFromConfig(cfg.Errors)
		if err != nil {
			logger.Warn("invalid error patterns; using defaults", zap.Error(err))
		} else {
			classifier = custom
		}
	}
	o := &Orchestrator{
		completer:  completer,
		config:     cfg,
		retry:      coreerrors.NewRetryExecutor(cfg.Retry, classifier),
		classifier: classifier,
		logger:     logger.Named("orchestrator"),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return o
}

// Provider returns the completer's name.
func (o *Orchestrator) Provider() string {
	return o.completer.Name()
}

// Model returns the model requests are sent with. An empty string means the
// completer's default.
func (o *Orchestrator) Model() string {
	if o.config.Model != "" {
		return o.config.Model
	}
	if m, ok := o.completer.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

// Generate sends p and validates the reply. Each retry is one more outbound
// call; the whole invocation yields exactly one result.
func (o *Orchestrator) Generate(ctx context.Context, p prompt.AssembledPrompt) GenerationResult {
	start := time.Now()
	req := o.completionRequest(p)

	var resp *providers.CompletionResponse
	attempts, err := o.retry.Execute(ctx, func(ctx context.Context, attempt int) error {
		r, err := o.attempt(ctx, req)
		if err != nil {
			o.logger.Warn("completion attempt failed",
				zap.Int("attempt", attempt+1),
				zap.String("provider", o.completer.Name()),
				zap.Stringer("tier", o.classifier.Classify(err)),
				zap.Error(err),
			)
			return err
		}
		resp = r
		return nil
	})

	var result GenerationResult
	if err != nil {
		result = o.failure(ctx, p, err)
	} else {
		result = validate(p, resp)
		result.Usage = resp.Usage
		result.Model = resp.Model
	}
	result.Attempts = attempts
	result.Provider = o.completer.Name()
	if result.Model == "" {
		result.Model = req.Model
	}
	result.Latency = time.Since(start)

	if result.Succeeded {
		o.logger.Info("generation succeeded",
			zap.String("mode", string(p.Mode)),
			zap.String("kind", string(p.Kind)),
			zap.Int("attempts", attempts),
			zap.Int("code_blocks", len(result.CodeBlocks)),
			zap.Duration("latency", result.Latency),
		)
	}
	return result
}

func (o *Orchestrator) completionRequest(p prompt.AssembledPrompt) *providers.CompletionRequest {
	req := &providers.CompletionRequest{
		System:    p.System,
		User:      p.User,
		Model:     o.Model(),
		MaxTokens: o.config.MaxTokens,
	}
	if t, ok := o.config.Temperatures[p.Kind]; ok {
		req.Temperature = providers.Float(t)
	}
	return req
}

func (o *Orchestrator) attempt(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, coreerrors.NewTieredError(coreerrors.TierExternalRateLimit, "outbound rate limit", err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	resp, err := o.completer.Complete(attemptCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", coreerrors.ErrTimeout, o.config.Timeout, err)
		}
		return nil, err
	}
	if resp == nil {
		return nil, coreerrors.NewTieredError(coreerrors.TierTransient, "completion returned no response", nil)
	}
	return resp, nil
}

func (o *Orchestrator) failure(ctx context.Context, p prompt.AssembledPrompt, err error) GenerationResult {
	if ctx.Err() != nil {
		return Failure(p.Mode, p.Kind, FailureCanceled, ctx.Err())
	}

	tier := o.classifier.Classify(err)
	if tier.Retryable() {
		o.logger.Warn("upstream unavailable after retries",
			zap.Stringer("tier", tier),
			zap.Int("max_retries", o.config.Retry.MaxRetries),
			zap.Error(err),
		)
		return Failure(p.Mode, p.Kind, FailureUpstreamUnavailable, err)
	}

	o.logger.Error("upstream rejected request; check provider configuration",
		zap.String("provider", o.completer.Name()),
		zap.Stringer("tier", tier),
		zap.Error(err),
	)
	return Failure(p.Mode, p.Kind, FailureUpstreamRejected, err)
}

// validate checks a reply's shape for the prompt's kind.
func validate(p prompt.AssembledPrompt, resp *providers.CompletionResponse) GenerationResult {
	text := resp.Text
	if !p.Kind.ExpectsCode() {
		doc := strings.TrimSpace(text)
		if doc == "" {
			r := Failure(p.Mode, p.Kind, FailureMalformedResponse, errors.New("empty documentation reply"))
			r.Raw = text
			return r
		}
		return GenerationResult{
			Content:    doc,
			Mode:       p.Mode,
			Kind:       p.Kind,
			Succeeded:  true,
			CodeBlocks: ExtractCodeBlocks(text),
		}
	}

	blocks := ExtractCodeBlocks(text)
	if len(blocks) == 0 {
		r := Failure(p.Mode, p.Kind, FailureMalformedResponse, errors.New("reply has no fenced code block"))
		r.Raw = text
		return r
	}
	return GenerationResult{
		Content:     primaryBlock(blocks).Code,
		Mode:        p.Mode,
		Kind:        p.Kind,
		Succeeded:   true,
		CodeBlocks:  blocks,
		Explanation: explanationText(text),
		Raw:         text,
	}
}
