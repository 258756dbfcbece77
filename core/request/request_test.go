package request

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	req, err := New(Params{
		Raw:          "  fix my app ",
		Normalized:   "fix my app",
		Mode:         ModeSimple,
		Kind:         KindFix,
		PriorCode:    "print(1)",
		ErrorContext: "NameError",
		CreatedAt:    created,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID())
	assert.Equal(t, "  fix my app ", req.Raw())
	assert.Equal(t, "fix my app", req.NormalizedText())
	assert.Equal(t, ModeSimple, req.Mode())
	assert.Equal(t, KindFix, req.Kind())
	assert.Equal(t, "print(1)", req.PriorCode())
	assert.Equal(t, "NameError", req.ErrorContext())
	assert.Equal(t, created, req.CreatedAt())
	assert.True(t, req.HasPriorCode())
}

func TestNew_Defaults(t *testing.T) {
	req, err := New(Params{Normalized: "x", Mode: ModeArchitected})
	require.NoError(t, err)
	assert.Equal(t, KindBuild, req.Kind())
	assert.False(t, req.CreatedAt().IsZero())
	assert.False(t, req.HasPriorCode())

	other, err := New(Params{Normalized: "x", Mode: ModeArchitected})
	require.NoError(t, err)
	assert.NotEqual(t, req.ID(), other.ID())
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Params{Mode: ModeSimple})
	var emptyErr *EmptyInputError
	assert.True(t, errors.As(err, &emptyErr))

	_, err = New(Params{Normalized: "x", Mode: "MEDIUM"})
	var modeErr *InvalidModeError
	assert.True(t, errors.As(err, &modeErr))

	_, err = New(Params{Normalized: "x", Mode: ModeSimple, Kind: "deploy"})
	var kindErr *InvalidKindError
	assert.True(t, errors.As(err, &kindErr))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindBuild, k)

	k, err = ParseKind("document")
	require.NoError(t, err)
	assert.Equal(t, KindDocument, k)
	assert.False(t, k.ExpectsCode())

	_, err = ParseKind("deploy")
	assert.Error(t, err)
}
