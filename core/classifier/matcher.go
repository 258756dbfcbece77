package classifier

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
)

const globMeta = "*?["

// keywordMatcher matches one configured keyword entry against text.
type keywordMatcher struct {
	keyword string
	re      *regexp.Regexp
	g       glob.Glob
}

func compileKeyword(keyword string) (keywordMatcher, error) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return keywordMatcher{}, fmt.Errorf("classifier: empty keyword")
	}

	if strings.ContainsAny(kw, globMeta) {
		if strings.ContainsFunc(kw, unicode.IsSpace) {
			return keywordMatcher{}, fmt.Errorf("classifier: glob keyword %q must be a single word", keyword)
		}
		g, err := glob.Compile(kw)
		if err != nil {
			return keywordMatcher{}, fmt.Errorf("classifier: invalid glob keyword %q: %w", keyword, err)
		}
		return keywordMatcher{keyword: kw, g: g}, nil
	}

	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	if err != nil {
		return keywordMatcher{}, fmt.Errorf("classifier: invalid keyword %q: %w", keyword, err)
	}
	return keywordMatcher{keyword: kw, re: re}, nil
}

func compileKeywords(keywords []string) ([]keywordMatcher, error) {
	out := make([]keywordMatcher, 0, len(keywords))
	for _, kw := range keywords {
		m, err := compileKeyword(kw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// scanText is the lowered input plus its word tokens.
type scanText struct {
	lower  string
	tokens []string
}

func newScanText(text string) scanText {
	lower := strings.ToLower(text)
	return scanText{
		lower: lower,
		tokens: strings.FieldsFunc(lower, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
		}),
	}
}

func (m keywordMatcher) match(t scanText) bool {
	if m.re != nil {
		return m.re.MatchString(t.lower)
	}
	for _, tok := range t.tokens {
		if m.g.Match(tok) {
			return true
		}
	}
	return false
}
