package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/architect/core/cache"
	"github.com/adalundhe/architect/core/classifier"
	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/request"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserve(t *testing.T) {
	m := New()

	m.Observe(context.Background(), pipeline.Event{
		RequestID: "r1",
		Signal:    classifier.Signal{Score: 4},
		Result: orchestrator.GenerationResult{
			Mode:      request.ModeArchitected,
			Kind:      request.KindBuild,
			Succeeded: true,
			Attempts:  2,
			Usage:     providers.Usage{InputTokens: 120, OutputTokens: 800},
		},
		Duration: 3 * time.Second,
	})
	m.Observe(context.Background(), pipeline.Event{
		Result:   orchestrator.Failure("", request.KindBuild, orchestrator.FailureEmptyInput, nil),
		Duration: time.Millisecond,
	})

	body := scrape(t, m)
	assert.Contains(t, body, `architect_pipeline_runs_total{cache="miss",kind="build",mode="ARCHITECTED",outcome="success"} 1`)
	assert.Contains(t, body, `architect_pipeline_runs_total{cache="miss",kind="build",mode="",outcome="EMPTY_INPUT"} 1`)
	assert.Contains(t, body, `architect_orchestrator_tokens_total{direction="output"} 800`)
	assert.Contains(t, body, `architect_orchestrator_attempts_count 1`)
	assert.Contains(t, body, `architect_classifier_score_count 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestWatchCache(t *testing.T) {
	m := New()
	c := cache.New(cache.DefaultConfig(), nil)
	m.WatchCache(c)

	c.GetOrCompute(context.Background(), "fp", func(context.Context) orchestrator.GenerationResult {
		return orchestrator.GenerationResult{Succeeded: true, Content: "x"}
	})
	c.GetOrCompute(context.Background(), "fp", nil)

	body := scrape(t, m)
	assert.Contains(t, body, "architect_cache_hits_total 1")
	assert.Contains(t, body, "architect_cache_misses_total 1")
	assert.Contains(t, body, "architect_cache_entries 1")
}
