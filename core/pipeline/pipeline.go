package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adalundhe/architect/core/cache"
	"github.com/adalundhe/architect/core/classifier"
	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/prompt"
	"github.com/adalundhe/architect/core/request"
)

// Input is one user action. A set Mode overrides classification; fix turns
// use it to keep the mode of the code they revise.
type Input struct {
	Text         string       `json:"text"`
	PriorCode    string       `json:"prior_code,omitempty"`
	ErrorContext string       `json:"error_context,omitempty"`
	History      string       `json:"history,omitempty"`
	Kind         request.Kind `json:"kind,omitempty"`
	Mode         request.Mode `json:"mode,omitempty"`
}

// Plan is everything decided before the outbound call.
type Plan struct {
	Request     *request.GenerationRequest
	Signal      classifier.Signal
	Prompt      prompt.AssembledPrompt
	Fingerprint cache.Fingerprint
}

// Pipeline runs Normalize, Classify, Assemble and Generate behind the result
// cache. It is safe for concurrent use by many sessions.
type Pipeline struct {
	normalizer   request.Normalizer
	classifier   *classifier.Classifier
	assembler    *prompt.Assembler
	orchestrator *orchestrator.Orchestrator
	results      *cache.ResultCache
	observers    []Observer
	logger       *zap.Logger
}

type Option func(*Pipeline)

func WithNormalizer(n request.Normalizer) Option {
	return func(p *Pipeline) {
		p.normalizer = n
	}
}

// WithResultCache enables result caching. Without it every Run calls the
// completer.
func WithResultCache(c *cache.ResultCache) Option {
	return func(p *Pipeline) {
		p.results = c
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, o)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline.
func New(c *classifier.Classifier, a *prompt.Assembler, o *orchestrator.Orchestrator, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer:   request.NewNormalizer(0, 0),
		classifier:   c,
		assembler:    a,
		orchestrator: o,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p
}

// Classifier returns the classifier, for policy reloads.
func (p *Pipeline) Classifier() *classifier.Classifier {
	return p.classifier
}

// Cache returns the result cache, or nil when caching is off.
func (p *Pipeline) Cache() *cache.ResultCache {
	return p.results
}

// Plan normalizes, classifies and assembles without calling the completer.
func (p *Pipeline) Plan(in Input) (Plan, error) {
	text, err := p.normalizer.Normalize(in.Text)
	if err != nil {
		return Plan{}, err
	}

	mode, sig := p.classifier.Classify(text)
	if in.Mode != "" {
		mode = in.Mode
	}
	req, err := request.New(request.Params{
		Raw:          in.Text,
		Normalized:   text,
		Mode:         mode,
		Kind:         in.Kind,
		PriorCode:    p.normalizer.NormalizeAttachment(in.PriorCode),
		ErrorContext: p.normalizer.NormalizeAttachment(in.ErrorContext),
		History:      p.normalizer.NormalizeAttachment(in.History),
	})
	if err != nil {
		return Plan{}, err
	}

	assembled, err := p.assembler.Assemble(req, sig)
	if err != nil {
		return Plan{Request: req, Signal: sig}, err
	}
	return Plan{
		Request:     req,
		Signal:      sig,
		Prompt:      assembled,
		Fingerprint: cache.NewFingerprint(req, assembled.Version, p.orchestrator.Model()),
	}, nil
}

// Run executes one invocation. It never fails with an error value; every
// outcome is a GenerationResult.
func (p *Pipeline) Run(ctx context.Context, in Input) orchestrator.GenerationResult {
	start := time.Now()
	kind := in.Kind
	if kind == "" {
		kind = request.KindBuild
	}

	plan, err := p.Plan(in)
	if err != nil {
		result := p.planFailure(plan, kind, err)
		result.Latency = time.Since(start)
		p.notify(ctx, plan, result, start)
		return result
	}

	generate := func(ctx context.Context) orchestrator.GenerationResult {
		return p.orchestrator.Generate(ctx, plan.Prompt)
	}

	var result orchestrator.GenerationResult
	if p.results != nil {
		result, _ = p.results.GetOrCompute(ctx, plan.Fingerprint, generate)
	} else {
		result = generate(ctx)
		if ctx.Err() != nil && !result.Succeeded {
			result = orchestrator.Failure(plan.Prompt.Mode, plan.Prompt.Kind, orchestrator.FailureCanceled, ctx.Err())
		}
	}
	if result.Mode == "" {
		result.Mode = plan.Prompt.Mode
		result.Kind = plan.Prompt.Kind
	}
	if !result.CacheHit {
		result.Latency = time.Since(start)
	}

	p.logger.Info("pipeline run finished",
		zap.String("request_id", plan.Request.ID()),
		zap.String("mode", string(result.Mode)),
		zap.String("kind", string(result.Kind)),
		zap.Bool("succeeded", result.Succeeded),
		zap.String("failure_reason", string(result.FailureReason)),
		zap.Bool("cache_hit", result.CacheHit),
		zap.String("fingerprint", plan.Fingerprint.Short()),
	)
	p.notify(ctx, plan, result, start)
	return result
}

func (p *Pipeline) planFailure(plan Plan, kind request.Kind, err error) orchestrator.GenerationResult {
	var empty *request.EmptyInputError
	var missing *prompt.TemplateMissingError
	var badKind *request.InvalidKindError
	var badMode *request.InvalidModeError

	switch {
	case errors.As(err, &empty):
		p.logger.Debug("empty input", zap.String("kind", string(kind)))
		return orchestrator.Failure("", kind, orchestrator.FailureEmptyInput, err)
	case errors.As(err, &missing), errors.As(err, &badKind), errors.As(err, &badMode):
		p.logger.Error("no prompt template for request",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		mode := request.Mode("")
		if plan.Request != nil {
			mode = plan.Request.Mode()
		}
		return orchestrator.Failure(mode, kind, orchestrator.FailureTemplateMissing, err)
	default:
		p.logger.Error("request could not be planned", zap.Error(err))
		return orchestrator.Failure("", kind, orchestrator.FailureTemplateMissing, err)
	}
}
