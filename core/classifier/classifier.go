package classifier

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/adalundhe/architect/core/request"
)

// Signal is the evidence behind a classification. Slices are sorted and
// free of duplicates.
type Signal struct {
	KeywordHits           []string `json:"keyword_hits"`
	RequestedIntegrations []string `json:"requested_integrations"`
	StructuralHits        []string `json:"structural_hits"`
	HardHits              []string `json:"hard_hits"`
	Score                 float64  `json:"estimated_complexity_score"`
}

// Empty reports whether no keyword matched.
func (s Signal) Empty() bool {
	return len(s.KeywordHits) == 0
}

func (s Signal) clone() Signal {
	return Signal{
		KeywordHits:           cloneStrings(s.KeywordHits),
		RequestedIntegrations: cloneStrings(s.RequestedIntegrations),
		StructuralHits:        cloneStrings(s.StructuralHits),
		HardHits:              cloneStrings(s.HardHits),
		Score:                 s.Score,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

type compiledPolicy struct {
	policy       Policy
	generation   uint64
	integrations []integrationMatchers
	structural   []keywordMatcher
	hard         map[string]struct{}
}

type integrationMatchers struct {
	name     string
	matchers []keywordMatcher
}

func compilePolicy(p Policy, generation uint64) (*compiledPolicy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cp := &compiledPolicy{
		policy:     p,
		generation: generation,
		hard:       make(map[string]struct{}, len(p.HardIntegrations)),
	}
	for _, name := range p.integrationNames() {
		matchers, err := compileKeywords(p.Integrations[name])
		if err != nil {
			return nil, err
		}
		cp.integrations = append(cp.integrations, integrationMatchers{name: name, matchers: matchers})
	}
	structural, err := compileKeywords(p.Structural)
	if err != nil {
		return nil, err
	}
	cp.structural = structural
	for _, h := range p.HardIntegrations {
		cp.hard[h] = struct{}{}
	}
	return cp, nil
}

// Classifier maps normalized text to a mode. Output depends only on the
// text and the active policy.
type Classifier struct {
	mu     sync.RWMutex
	active *compiledPolicy
	memo   *SignalCache
	logger *zap.Logger
}

// New compiles policy and returns a Classifier. A nil memo disables
// memoization.
func New(policy Policy, memo *SignalCache, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cp, err := compilePolicy(policy, 1)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		active: cp,
		memo:   memo,
		logger: logger.Named("classifier"),
	}, nil
}

// Classify returns the mode and the signal for text.
func (c *Classifier) Classify(text string) (request.Mode, Signal) {
	c.mu.RLock()
	cp := c.active
	c.mu.RUnlock()

	if mode, sig, ok := c.memo.Get(cp.generation, text); ok {
		return mode, sig.clone()
	}

	mode, sig := cp.classify(text)
	c.memo.Set(cp.generation, text, mode, sig)

	c.logger.Debug("classified request",
		zap.String("mode", string(mode)),
		zap.Float64("score", sig.Score),
		zap.Strings("integrations", sig.RequestedIntegrations),
		zap.Strings("hard_hits", sig.HardHits),
	)
	return mode, sig.clone()
}

func (cp *compiledPolicy) classify(text string) (request.Mode, Signal) {
	t := newScanText(text)
	hits := make(map[string]struct{})
	var sig Signal

	for _, integ := range cp.integrations {
		matched := false
		for _, m := range integ.matchers {
			if m.match(t) {
				hits[m.keyword] = struct{}{}
				matched = true
			}
		}
		if !matched {
			continue
		}
		sig.RequestedIntegrations = append(sig.RequestedIntegrations, integ.name)
		if _, ok := cp.hard[integ.name]; ok {
			sig.HardHits = append(sig.HardHits, integ.name)
		}
	}

	structural := make(map[string]struct{})
	for _, m := range cp.structural {
		if m.match(t) {
			hits[m.keyword] = struct{}{}
			structural[m.keyword] = struct{}{}
		}
	}

	sig.KeywordHits = sortedKeys(hits)
	sig.StructuralHits = sortedKeys(structural)
	sig.Score = cp.policy.IntegrationWeight*float64(len(sig.RequestedIntegrations)) +
		cp.policy.StructuralWeight*float64(len(sig.StructuralHits))

	if len(sig.HardHits) > 0 || sig.Score >= cp.policy.Threshold {
		return request.ModeArchitected, sig
	}
	return request.ModeSimple, sig
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UpdatePolicy swaps in a new policy. An invalid policy is rejected and the
// active one stays in place. Memoized signals from the old policy are dropped.
func (c *Classifier) UpdatePolicy(policy Policy) error {
	c.mu.Lock()
	cp, err := compilePolicy(policy, c.active.generation+1)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("rejected classifier policy", zap.Error(err))
		return err
	}
	c.active = cp
	c.mu.Unlock()

	c.memo.Clear()
	c.logger.Info("classifier policy updated",
		zap.Float64("threshold", policy.Threshold),
		zap.Int("integrations", len(policy.Integrations)),
		zap.Int("structural", len(policy.Structural)),
	)
	return nil
}

// Policy returns the active policy.
func (c *Classifier) Policy() Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active.policy
}
