package errors

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ErrorClassifier assigns a tier to errors that were not already tiered by
// the code that produced them.
type ErrorClassifier struct {
	transientPats   []*regexp.Regexp
	permanentPats   []*regexp.Regexp
	userFixablePats []*regexp.Regexp
	transientCodes  map[int]struct{}
	rateLimitCodes  map[int]struct{}
	degradingCodes  map[int]struct{}
	permanentCodes  map[int]struct{}
}

// NewErrorClassifier returns a classifier loaded with the default config.
func NewErrorClassifier() *ErrorClassifier {
	c, err := NewErrorClassifierFromConfig(DefaultErrorClassifierConfig())
	if err != nil {
		panic("errors: default classifier config does not compile: " + err.Error())
	}
	return c
}

func NewErrorClassifierFromConfig(cfg *ErrorClassifierConfig) (*ErrorClassifier, error) {
	c := &ErrorClassifier{
		transientCodes: intSliceToSet(cfg.TransientStatuses),
		rateLimitCodes: intSliceToSet(cfg.RateLimitStatuses),
		degradingCodes: intSliceToSet(cfg.DegradingStatuses),
		permanentCodes: intSliceToSet(cfg.PermanentStatuses),
	}
	specs := []struct {
		patterns []string
		target   *[]*regexp.Regexp
		name     string
	}{
		{cfg.TransientPatterns, &c.transientPats, "transient"},
		{cfg.PermanentPatterns, &c.permanentPats, "permanent"},
		{cfg.UserFixablePatterns, &c.userFixablePats, "user-fixable"},
	}
	for _, spec := range specs {
		for _, p := range spec.patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, WrapWithTier(TierPermanent, "invalid "+spec.name+" pattern", err)
			}
			*spec.target = append(*spec.target, re)
		}
	}
	return c, nil
}

func intSliceToSet(codes []int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// ClassifyStatus maps an HTTP status code to a tier. Unknown codes are
// reported with ok=false.
func (c *ErrorClassifier) ClassifyStatus(code int) (ErrorTier, bool) {
	if _, ok := c.transientCodes[code]; ok {
		return TierTransient, true
	}
	if _, ok := c.rateLimitCodes[code]; ok {
		return TierExternalRateLimit, true
	}
	if _, ok := c.degradingCodes[code]; ok {
		return TierExternalDegrading, true
	}
	if _, ok := c.permanentCodes[code]; ok {
		return TierPermanent, true
	}
	return TierPermanent, false
}

// Classify returns the tier for err. Tiered errors keep their tier; deadline
// and network timeouts are transient; anything else is matched by content.
func (c *ErrorClassifier) Classify(err error) ErrorTier {
	if err == nil {
		return TierPermanent
	}

	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TierTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return TierTransient
	}

	return c.classifyByContent(err.Error())
}

func (c *ErrorClassifier) classifyByContent(errStr string) ErrorTier {
	// Quota exhaustion arrives as a 429 from some providers but never clears.
	if matchesAny(errStr, c.permanentPats) {
		return TierPermanent
	}
	if matchesAny(errStr, c.userFixablePats) {
		return TierUserFixable
	}
	if c.isRateLimitError(errStr) {
		return TierExternalRateLimit
	}
	if containsAnyStatusCode(errStr, c.degradingCodes) {
		return TierExternalDegrading
	}
	if containsAnyStatusCode(errStr, c.permanentCodes) {
		return TierPermanent
	}
	if containsAnyStatusCode(errStr, c.transientCodes) || matchesAny(errStr, c.transientPats) {
		return TierTransient
	}
	return TierPermanent
}

func (c *ErrorClassifier) isRateLimitError(errStr string) bool {
	lower := strings.ToLower(errStr)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") {
		return true
	}
	return containsAnyStatusCode(errStr, c.rateLimitCodes)
}

var statusTokenRegex = regexp.MustCompile(`\b[1-5][0-9]{2}\b`)

func containsAnyStatusCode(errStr string, codes map[int]struct{}) bool {
	for _, tok := range statusTokenRegex.FindAllString(errStr, -1) {
		code, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if _, ok := codes[code]; ok {
			return true
		}
	}
	return false
}

func matchesAny(errStr string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(errStr) {
			return true
		}
	}
	return false
}
