package request

import (
	"time"

	"github.com/google/uuid"
)

// GenerationRequest is one user action, normalized and classified. It is
// immutable: fields are set once by New and read through accessors.
type GenerationRequest struct {
	id           string
	raw          string
	normalized   string
	mode         Mode
	kind         Kind
	priorCode    string
	errorContext string
	history      string
	createdAt    time.Time
}

// Params carries the inputs for New.
type Params struct {
	Raw          string
	Normalized   string
	Mode         Mode
	Kind         Kind
	PriorCode    string
	ErrorContext string
	History      string
	CreatedAt    time.Time
}

// New builds a request. The mode is fixed here and never re-derived.
func New(p Params) (*GenerationRequest, error) {
	if p.Normalized == "" {
		return nil, &EmptyInputError{}
	}
	if !p.Mode.Valid() {
		return nil, &InvalidModeError{Mode: p.Mode}
	}
	kind := p.Kind
	if kind == "" {
		kind = KindBuild
	}
	if !kind.Valid() {
		return nil, &InvalidKindError{Kind: kind}
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &GenerationRequest{
		id:           uuid.NewString(),
		raw:          p.Raw,
		normalized:   p.Normalized,
		mode:         p.Mode,
		kind:         kind,
		priorCode:    p.PriorCode,
		errorContext: p.ErrorContext,
		history:      p.History,
		createdAt:    created,
	}, nil
}

func (r *GenerationRequest) ID() string             { return r.id }
func (r *GenerationRequest) Raw() string            { return r.raw }
func (r *GenerationRequest) NormalizedText() string { return r.normalized }
func (r *GenerationRequest) Mode() Mode             { return r.mode }
func (r *GenerationRequest) Kind() Kind             { return r.kind }
func (r *GenerationRequest) PriorCode() string      { return r.priorCode }
func (r *GenerationRequest) ErrorContext() string   { return r.errorContext }
func (r *GenerationRequest) History() string        { return r.history }
func (r *GenerationRequest) CreatedAt() time.Time   { return r.createdAt }

// HasPriorCode reports whether the request carries code to fix or document.
func (r *GenerationRequest) HasPriorCode() bool {
	return r.priorCode != ""
}

// InvalidModeError is returned when a request is built with an unknown mode.
type InvalidModeError struct {
	Mode Mode
}

func (e *InvalidModeError) Error() string {
	return "invalid mode: " + string(e.Mode)
}

// InvalidKindError is returned when a request is built with an unknown kind.
type InvalidKindError struct {
	Kind Kind
}

func (e *InvalidKindError) Error() string {
	return "invalid kind: " + string(e.Kind)
}
