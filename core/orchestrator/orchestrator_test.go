package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/architect/core/errors"
	"github.com/adalundhe/architect/core/prompt"
	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/request"
)

const fence = "```"

type scriptedCompleter struct {
	mu    sync.Mutex
	calls []*providers.CompletionRequest
	steps []func(ctx context.Context) (*providers.CompletionResponse, error)
}

func (s *scriptedCompleter) Name() string  { return "fake" }
func (s *scriptedCompleter) Model() string { return "fake-model" }

func (s *scriptedCompleter) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	i := len(s.calls) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	s.mu.Unlock()
	return step(ctx)
}

func (s *scriptedCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func reply(text string) func(context.Context) (*providers.CompletionResponse, error) {
	return func(context.Context) (*providers.CompletionResponse, error) {
		return &providers.CompletionResponse{Text: text, Model: "fake-model", Usage: providers.Usage{TotalTokens: 10}}, nil
	}
}

func fail(err error) func(context.Context) (*providers.CompletionResponse, error) {
	return func(context.Context) (*providers.CompletionResponse, error) {
		return nil, err
	}
}

func testConfig(retries int) Config {
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	cfg.Retry = coreerrors.RetryPolicy{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
	return cfg
}

func buildPrompt(mode request.Mode) prompt.AssembledPrompt {
	return prompt.AssembledPrompt{
		System:  "system for " + string(mode),
		User:    "=== REQUEST ===\nbuild a calculator\n=== END REQUEST ===\n",
		Mode:    mode,
		Kind:    request.KindBuild,
		Version: prompt.Version,
	}
}

var calculatorReply = "Here is your app.\n\n" + fence + "python\nimport streamlit as st\n\nst.title('Calculator')\n" + fence + "\n\nRun it with streamlit run."

func TestGenerate_Success(t *testing.T) {
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){reply(calculatorReply)}}
	o := New(fc, testConfig(3), nil)
	p := buildPrompt(request.ModeSimple)
	before := p

	res := o.Generate(context.Background(), p)

	require.True(t, res.Succeeded, res.Error)
	assert.Equal(t, FailureNone, res.FailureReason)
	assert.Equal(t, "import streamlit as st\n\nst.title('Calculator')", res.Content)
	require.Len(t, res.CodeBlocks, 1)
	assert.Equal(t, "python", res.CodeBlocks[0].Language)
	assert.Equal(t, "Here is your app.\n\nRun it with streamlit run.", res.Explanation)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "fake", res.Provider)
	assert.Equal(t, "fake-model", res.Model)
	assert.Equal(t, 10, res.Usage.TotalTokens)
	assert.Equal(t, before, p)

	require.Equal(t, 1, fc.callCount())
	call := fc.calls[0]
	assert.Equal(t, p.System, call.System)
	assert.Equal(t, p.User, call.User)
	assert.Equal(t, "fake-model", call.Model)
	assert.Equal(t, providers.DefaultMaxTokens, call.MaxTokens)
	require.NotNil(t, call.Temperature)
	assert.Equal(t, 0.1, *call.Temperature)
}

func TestGenerate_RecoversAfterTransientFailures(t *testing.T) {
	const retries = 3
	steps := []func(context.Context) (*providers.CompletionResponse, error){}
	for i := 0; i < retries-1; i++ {
		steps = append(steps, fail(coreerrors.ErrServiceUnavailable))
	}
	steps = append(steps, reply(calculatorReply))
	fc := &scriptedCompleter{steps: steps}

	res := New(fc, testConfig(retries), nil).Generate(context.Background(), buildPrompt(request.ModeSimple))

	require.True(t, res.Succeeded)
	assert.Equal(t, retries, res.Attempts)
	assert.Equal(t, retries, fc.callCount())
}

func TestGenerate_ExhaustedRetriesIsUnavailable(t *testing.T) {
	const retries = 3
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){
		fail(errors.New("read tcp 10.0.0.1:443: connection reset by peer")),
	}}

	res := New(fc, testConfig(retries), nil).Generate(context.Background(), buildPrompt(request.ModeArchitected))

	assert.False(t, res.Succeeded)
	assert.Equal(t, FailureUpstreamUnavailable, res.FailureReason)
	assert.Equal(t, retries+1, res.Attempts)
	assert.Equal(t, retries+1, fc.callCount())
	assert.Equal(t, request.ModeArchitected, res.Mode)
}

func TestGenerate_RejectedIsNotRetried(t *testing.T) {
	for _, err := range []error{
		coreerrors.ErrUnauthorized,
		coreerrors.ErrForbidden,
		coreerrors.NewTieredError(coreerrors.TierPermanent, "groq returned 429 (insufficient_quota)", nil).WithStatusCode(429),
	} {
		fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){fail(err)}}

		res := New(fc, testConfig(5), nil).Generate(context.Background(), buildPrompt(request.ModeSimple))

		assert.Equal(t, FailureUpstreamRejected, res.FailureReason, err.Error())
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, 1, fc.callCount())
	}
}

func TestGenerate_CustomErrorPatterns(t *testing.T) {
	hiccup := errors.New("upstream hiccup")
	steps := []func(context.Context) (*providers.CompletionResponse, error){fail(hiccup), reply(fence + "python\nx = 1\n" + fence)}

	fc := &scriptedCompleter{steps: steps}
	res := New(fc, testConfig(2), nil).Generate(context.Background(), buildPrompt(request.ModeSimple))
	assert.Equal(t, FailureUpstreamRejected, res.FailureReason)

	cfg := testConfig(2)
	cfg.Errors = coreerrors.DefaultErrorClassifierConfig()
	cfg.Errors.TransientPatterns = append(cfg.Errors.TransientPatterns, `(?i)hiccup`)
	fc = &scriptedCompleter{steps: steps}
	res = New(fc, cfg, nil).Generate(context.Background(), buildPrompt(request.ModeSimple))
	assert.True(t, res.Succeeded)
	assert.Equal(t, 2, res.Attempts)
}

func TestGenerate_AttemptTimeoutIsRetried(t *testing.T) {
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){
		func(ctx context.Context) (*providers.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		reply(calculatorReply),
	}}
	cfg := testConfig(2)
	cfg.Timeout = 20 * time.Millisecond

	res := New(fc, cfg, nil).Generate(context.Background(), buildPrompt(request.ModeSimple))

	require.True(t, res.Succeeded)
	assert.Equal(t, 2, res.Attempts)
}

func TestGenerate_AttemptTimeoutsExhaustRetries(t *testing.T) {
	hang := func(ctx context.Context) (*providers.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){hang, hang}}
	cfg := testConfig(1)
	cfg.Timeout = 10 * time.Millisecond

	res := New(fc, cfg, nil).Generate(context.Background(), buildPrompt(request.ModeSimple))

	require.False(t, res.Succeeded)
	assert.Equal(t, FailureUpstreamUnavailable, res.FailureReason)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, res.Error, coreerrors.ErrTimeout.Error())
	assert.Contains(t, res.Error, "after 10ms")
}

func TestGenerate_MalformedResponse(t *testing.T) {
	for _, text := range []string{
		"Sure! Just use st.number_input and add the numbers.",
		fence + "python\n\n" + fence,
		"",
	} {
		fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){reply(text)}}

		res := New(fc, testConfig(3), nil).Generate(context.Background(), buildPrompt(request.ModeSimple))

		assert.False(t, res.Succeeded)
		assert.Equal(t, FailureMalformedResponse, res.FailureReason)
		assert.Empty(t, res.Content)
		assert.Equal(t, text, res.Raw)
		assert.Equal(t, 1, fc.callCount(), "malformed replies are not retried")
	}
}

func TestGenerate_Document(t *testing.T) {
	doc := "# Calculator\n\nA tiny calculator.\n\n## Run\n\n" + fence + "bash\nstreamlit run app.py\n" + fence + "\n"
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){reply(doc)}}
	p := buildPrompt(request.ModeSimple)
	p.Kind = request.KindDocument

	res := New(fc, testConfig(1), nil).Generate(context.Background(), p)

	require.True(t, res.Succeeded)
	assert.Equal(t, strings.TrimSpace(doc), res.Content)
	assert.Equal(t, 0.2, *fc.calls[0].Temperature)

	fc = &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){reply("  \n")}}
	res = New(fc, testConfig(1), nil).Generate(context.Background(), p)
	assert.Equal(t, FailureMalformedResponse, res.FailureReason)
}

func TestGenerate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){
		func(ctx context.Context) (*providers.CompletionResponse, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}

	res := New(fc, testConfig(3), nil).Generate(ctx, buildPrompt(request.ModeSimple))

	assert.Equal(t, FailureCanceled, res.FailureReason)
	assert.Equal(t, 1, fc.callCount())
}

func TestGenerate_ModelOverride(t *testing.T) {
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){reply(calculatorReply)}}
	cfg := testConfig(0)
	cfg.Model = "llama-3.1-8b-instant"
	o := New(fc, cfg, nil)

	o.Generate(context.Background(), buildPrompt(request.ModeSimple))

	assert.Equal(t, "llama-3.1-8b-instant", o.Model())
	assert.Equal(t, "llama-3.1-8b-instant", fc.calls[0].Model)
}

func TestGenerate_RateLimited(t *testing.T) {
	fc := &scriptedCompleter{steps: []func(context.Context) (*providers.CompletionResponse, error){reply(calculatorReply)}}
	cfg := testConfig(0)
	cfg.RateLimitRPS = 1000
	o := New(fc, cfg, nil)

	for i := 0; i < 3; i++ {
		assert.True(t, o.Generate(context.Background(), buildPrompt(request.ModeSimple)).Succeeded)
	}
	assert.Equal(t, 3, fc.callCount())
}

func TestExtractCodeBlocks(t *testing.T) {
	text := "intro\n" +
		fence + "python\nshort()\n" + fence + "\n" +
		"middle\n" +
		fence + "\nmuch_longer_function_call()\n" + fence + "\n" +
		fence + "Python  \nsame_length_as_longer()\n" + fence
	blocks := ExtractCodeBlocks(text)

	require.Len(t, blocks, 3)
	assert.Equal(t, CodeBlock{Language: "python", Code: "short()"}, blocks[0])
	assert.Equal(t, CodeBlock{Code: "much_longer_function_call()"}, blocks[1])
	assert.Equal(t, "python", blocks[2].Language)
	assert.Equal(t, "much_longer_function_call()", primaryBlock(blocks).Code)
	assert.Equal(t, "intro\n\nmiddle", explanationText(text))
}

func TestExtractCodeBlocks_IgnoresUnterminated(t *testing.T) {
	assert.Empty(t, ExtractCodeBlocks(fence+"python\nimport streamlit as st\n"))
}

func TestFailureReason_UserMessage(t *testing.T) {
	assert.Contains(t, FailureUpstreamUnavailable.UserMessage(), "try again")
	assert.NotEmpty(t, FailureEmptyInput.UserMessage())
	assert.Empty(t, FailureNone.UserMessage())
}
