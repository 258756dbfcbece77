package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/request"
)

func TestMain(m *testing.M) {
	// The expirable LRU runs a cleanup goroutine that is never stopped.
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1"),
		// go.opencensus.io (pulled in via genai) starts a view worker in init that never exits.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func success(content string) orchestrator.GenerationResult {
	return orchestrator.GenerationResult{
		Content:    content,
		Mode:       request.ModeSimple,
		Kind:       request.KindBuild,
		Succeeded:  true,
		CodeBlocks: []orchestrator.CodeBlock{{Language: "python", Code: content}},
		Attempts:   1,
	}
}

func counting(calls *atomic.Int32, r orchestrator.GenerationResult) ComputeFunc {
	return func(context.Context) orchestrator.GenerationResult {
		calls.Add(1)
		return r
	}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	c := New(Config{MaxEntries: 8, TTL: time.Minute}, nil)
	var calls atomic.Int32

	r, hit := c.GetOrCompute(context.Background(), "fp", counting(&calls, success("print(1)")))
	require.True(t, r.Succeeded)
	assert.False(t, hit)
	assert.False(t, r.CacheHit)

	r, hit = c.GetOrCompute(context.Background(), "fp", counting(&calls, success("other")))
	assert.True(t, hit)
	assert.True(t, r.CacheHit)
	assert.Equal(t, "print(1)", r.Content)
	assert.Equal(t, int32(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Stores)
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestGetOrCompute_ConcurrentCallersShareOneCompute(t *testing.T) {
	c := New(DefaultConfig(), nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) orchestrator.GenerationResult {
		calls.Add(1)
		<-release
		return success("st.write('hi')")
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]orchestrator.GenerationResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrCompute(context.Background(), "same", compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.True(t, r.Succeeded)
		assert.Equal(t, "st.write('hi')", r.Content)
	}
}

func TestGetOrCompute_DistinctFingerprintsRunConcurrently(t *testing.T) {
	c := New(DefaultConfig(), nil)
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	compute := func(context.Context) orchestrator.GenerationResult {
		started <- struct{}{}
		<-release
		return success("x = 1")
	}

	var wg sync.WaitGroup
	for _, fp := range []Fingerprint{"a", "b"} {
		wg.Add(1)
		go func(fp Fingerprint) {
			defer wg.Done()
			c.GetOrCompute(context.Background(), fp, compute)
		}(fp)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("computes for different fingerprints did not overlap")
		}
	}
	close(release)
	wg.Wait()
	assert.Equal(t, 2, c.Len())
}

func TestGetOrCompute_FailuresAreNotStored(t *testing.T) {
	c := New(DefaultConfig(), nil)
	var calls atomic.Int32
	failed := orchestrator.Failure(request.ModeSimple, request.KindBuild, orchestrator.FailureUpstreamUnavailable, assert.AnError)

	for i := 0; i < 2; i++ {
		r, hit := c.GetOrCompute(context.Background(), "fp", counting(&calls, failed))
		assert.False(t, hit)
		assert.Equal(t, orchestrator.FailureUpstreamUnavailable, r.FailureReason)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, c.Len())
}

func TestGetOrCompute_ExpiredEntriesAreAbsent(t *testing.T) {
	c := New(Config{MaxEntries: 8, TTL: 20 * time.Millisecond}, nil)
	var calls atomic.Int32

	c.GetOrCompute(context.Background(), "fp", counting(&calls, success("a")))
	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get("fp")
	assert.False(t, ok)
	_, hit := c.GetOrCompute(context.Background(), "fp", counting(&calls, success("a")))
	assert.False(t, hit)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_CapacityEviction(t *testing.T) {
	c := New(Config{MaxEntries: 2, TTL: time.Minute}, nil)
	var calls atomic.Int32

	for _, fp := range []Fingerprint{"a", "b", "c"} {
		c.GetOrCompute(context.Background(), fp, counting(&calls, success(string(fp))))
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestGetOrCompute_AbandonedCallerStillPopulates(t *testing.T) {
	c := New(DefaultConfig(), nil)
	release := make(chan struct{})
	var computeCtxErr atomic.Value
	compute := func(ctx context.Context) orchestrator.GenerationResult {
		<-release
		computeCtxErr.Store(ctx.Err() == nil)
		return success("import streamlit as st")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan orchestrator.GenerationResult, 1)
	go func() {
		r, _ := c.GetOrCompute(ctx, "fp", compute)
		done <- r
	}()

	cancel()
	r := <-done
	assert.False(t, r.Succeeded)
	assert.Equal(t, orchestrator.FailureCanceled, r.FailureReason)

	close(release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, true, computeCtxErr.Load())

	r, hit := c.GetOrCompute(context.Background(), "fp", counting(new(atomic.Int32), success("other")))
	assert.True(t, hit)
	assert.Equal(t, "import streamlit as st", r.Content)
}

func TestGetOrCompute_ReturnsCopies(t *testing.T) {
	c := New(DefaultConfig(), nil)
	var calls atomic.Int32
	c.GetOrCompute(context.Background(), "fp", counting(&calls, success("a")))

	r, _ := c.Get("fp")
	r.CodeBlocks[0].Code = "mutated"

	again, _ := c.Get("fp")
	assert.Equal(t, "a", again.CodeBlocks[0].Code)
}

func TestRemoveAndPurge(t *testing.T) {
	c := New(DefaultConfig(), nil)
	var calls atomic.Int32
	c.GetOrCompute(context.Background(), "a", counting(&calls, success("a")))
	c.GetOrCompute(context.Background(), "b", counting(&calls, success("b")))

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	c.Purge()
	assert.Zero(t, c.Len())
}
