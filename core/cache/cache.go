package cache

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adalundhe/architect/core/orchestrator"
)

const (
	defaultMaxEntries = 256
	defaultTTL        = time.Hour
)

// Config bounds the cache.
type Config struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{MaxEntries: defaultMaxEntries, TTL: defaultTTL}
}

// Entry is one stored result.
type Entry struct {
	Fingerprint Fingerprint
	Result      orchestrator.GenerationResult
	ExpiresAt   time.Time
}

// ComputeFunc produces a result on a miss. It receives a context that is not
// canceled when the caller gives up.
type ComputeFunc func(ctx context.Context) orchestrator.GenerationResult

// ResultCache memoizes successful generation results by fingerprint and
// collapses concurrent computes for the same fingerprint into one.
type ResultCache struct {
	lru    *expirable.LRU[Fingerprint, Entry]
	group  singleflight.Group
	ttl    time.Duration
	stats  *Stats
	logger *zap.Logger
}

// New creates a ResultCache. Zero fields in cfg take their defaults.
func New(cfg Config, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	c := &ResultCache{
		ttl:    cfg.TTL,
		stats:  newStats(),
		logger: logger.Named("cache"),
	}
	c.lru = expirable.NewLRU(cfg.MaxEntries, func(fp Fingerprint, _ Entry) {
		c.stats.recordEviction()
		c.logger.Debug("entry evicted", zap.String("fingerprint", fp.Short()))
	}, cfg.TTL)
	return c
}

// Get returns a stored result. Expired entries are absent.
func (c *ResultCache) Get(fp Fingerprint) (orchestrator.GenerationResult, bool) {
	e, ok := c.lru.Get(fp)
	if !ok || time.Now().After(e.ExpiresAt) {
		return orchestrator.GenerationResult{}, false
	}
	return hit(e.Result), true
}

// GetOrCompute returns the stored result for fp, or runs compute. At most one
// compute per fingerprint is in flight; concurrent callers share its result.
// Only successful results are stored. A caller whose ctx ends first receives
// a CANCELED result while the compute continues and still populates the cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, fp Fingerprint, compute ComputeFunc) (orchestrator.GenerationResult, bool) {
	if r, ok := c.Get(fp); ok {
		c.stats.recordHit()
		return r, true
	}
	c.stats.recordMiss()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(fp), func() (any, error) {
		if r, ok := c.Get(fp); ok {
			return r, nil
		}
		c.stats.recordCompute()
		r := compute(detached)
		if r.Succeeded {
			c.store(fp, r)
		}
		return r, nil
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("caller abandoned request", zap.String("fingerprint", fp.Short()))
		return orchestrator.Failure("", "", orchestrator.FailureCanceled, ctx.Err()), false
	case res := <-ch:
		r := res.Val.(orchestrator.GenerationResult)
		return clone(r), r.CacheHit
	}
}

func (c *ResultCache) store(fp Fingerprint, r orchestrator.GenerationResult) {
	r = clone(r)
	r.CacheHit = false
	c.lru.Add(fp, Entry{Fingerprint: fp, Result: r, ExpiresAt: time.Now().Add(c.ttl)})
	c.stats.recordStore()
}

// Remove drops a stored result.
func (c *ResultCache) Remove(fp Fingerprint) bool {
	return c.lru.Remove(fp)
}

// Purge drops every stored result.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of stored results, including ones pending expiry.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Stats returns a snapshot of cache statistics.
func (c *ResultCache) Stats() Snapshot {
	return c.stats.snapshot(c.lru.Len())
}

func hit(r orchestrator.GenerationResult) orchestrator.GenerationResult {
	r = clone(r)
	r.CacheHit = true
	return r
}

func clone(r orchestrator.GenerationResult) orchestrator.GenerationResult {
	r.CodeBlocks = slices.Clone(r.CodeBlocks)
	return r
}
