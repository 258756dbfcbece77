package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adalundhe/architect/core/cache"
	"github.com/adalundhe/architect/core/pipeline"
)

const namespace = "architect"

const outcomeSuccess = "success"

// Metrics records pipeline outcomes as Prometheus series.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	attempts prometheus.Histogram
	score    prometheus.Histogram
	tokens   *prometheus.CounterVec
}

// New creates Metrics on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline invocations by kind, mode and outcome.",
		}, []string{"kind", "mode", "outcome", "cache"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End to end invocation latency.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"kind", "mode"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "attempts",
			Help:      "Outbound calls made per generation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8},
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "score",
			Help:      "Estimated complexity score per request.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "tokens_total",
			Help:      "Tokens reported by the completion service.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.runs, m.latency, m.attempts, m.score, m.tokens)
	return m
}

// WatchCache exports the result cache statistics.
func (m *Metrics) WatchCache(c *cache.ResultCache) {
	stat := func(name, help string, read func(cache.Snapshot) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(c.Stats()) })
	}
	m.registry.MustRegister(
		stat("hits_total", "Result cache hits.", func(s cache.Snapshot) float64 { return float64(s.Hits) }),
		stat("misses_total", "Result cache misses.", func(s cache.Snapshot) float64 { return float64(s.Misses) }),
		stat("evictions_total", "Result cache evictions and expiries.", func(s cache.Snapshot) float64 { return float64(s.Evictions) }),
		stat("computes_total", "Generations started on a miss.", func(s cache.Snapshot) float64 { return float64(s.Computes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Stored results.",
		}, func() float64 { return float64(c.Len()) }),
	)
}

// Observe implements pipeline.Observer.
func (m *Metrics) Observe(_ context.Context, ev pipeline.Event) {
	r := ev.Result
	kind, mode := string(r.Kind), string(r.Mode)
	outcome := outcomeSuccess
	if !r.Succeeded {
		outcome = string(r.FailureReason)
	}
	cacheLabel := "miss"
	if r.CacheHit {
		cacheLabel = "hit"
	}

	m.runs.WithLabelValues(kind, mode, outcome, cacheLabel).Inc()
	m.latency.WithLabelValues(kind, mode).Observe(ev.Duration.Seconds())
	if ev.RequestID != "" {
		m.score.Observe(ev.Signal.Score)
	}
	if r.Attempts > 0 && !r.CacheHit {
		m.attempts.Observe(float64(r.Attempts))
		m.tokens.WithLabelValues("input").Add(float64(r.Usage.InputTokens))
		m.tokens.WithLabelValues("output").Add(float64(r.Usage.OutputTokens))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
