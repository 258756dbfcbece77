package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/architect/core/request"
)

func mustRequest(t *testing.T, p request.Params) *request.GenerationRequest {
	t.Helper()
	if p.Mode == "" {
		p.Mode = request.ModeSimple
	}
	if p.Kind == "" {
		p.Kind = request.KindBuild
	}
	if p.Raw == "" {
		p.Raw = p.Normalized
	}
	req, err := request.New(p)
	require.NoError(t, err)
	return req
}

func TestNewFingerprint_StableForEqualRequests(t *testing.T) {
	a := mustRequest(t, request.Params{Normalized: "build a calculator"})
	b := mustRequest(t, request.Params{Normalized: "build a calculator", Raw: "  build   a calculator "})

	assert.Equal(t, NewFingerprint(a, "v1", "m"), NewFingerprint(b, "v1", "m"))
	assert.Len(t, string(NewFingerprint(a, "v1", "m")), 64)
}

func TestNewFingerprint_SensitiveToEveryField(t *testing.T) {
	base := mustRequest(t, request.Params{Normalized: "build a calculator"})
	fp := NewFingerprint(base, "v1", "m")

	variants := map[string]Fingerprint{
		"version": NewFingerprint(base, "v2", "m"),
		"model":   NewFingerprint(base, "v1", "other"),
		"mode":    NewFingerprint(mustRequest(t, request.Params{Normalized: "build a calculator", Mode: request.ModeArchitected}), "v1", "m"),
		"kind":    NewFingerprint(mustRequest(t, request.Params{Normalized: "build a calculator", Kind: request.KindDocument}), "v1", "m"),
		"text":    NewFingerprint(mustRequest(t, request.Params{Normalized: "build a calculator app"}), "v1", "m"),
		"prior":   NewFingerprint(mustRequest(t, request.Params{Normalized: "build a calculator", PriorCode: "x = 1"}), "v1", "m"),
		"error":   NewFingerprint(mustRequest(t, request.Params{Normalized: "build a calculator", ErrorContext: "NameError"}), "v1", "m"),
		"history": NewFingerprint(mustRequest(t, request.Params{Normalized: "build a calculator", History: "user: it crashes"}), "v1", "m"),
	}
	for name, v := range variants {
		assert.NotEqual(t, fp, v, name)
	}
}

func TestHashFields_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, hashFields("ab", "c"), hashFields("a", "bc"))
	assert.NotEqual(t, hashFields("", "x"), hashFields("x", ""))
	assert.Equal(t, "abcdef012345", Fingerprint("abcdef0123456789").Short())
}
