// Package request defines the immutable generation request and the text
// normalization applied to everything a user submits.
package request

import "fmt"

// Mode is the generation strategy chosen for a request.
type Mode string

const (
	// ModeSimple asks for a single self-contained Streamlit script.
	ModeSimple Mode = "SIMPLE"
	// ModeArchitected asks for a layered application with integrations.
	ModeArchitected Mode = "ARCHITECTED"
)

// Modes lists every mode in a stable order.
func Modes() []Mode {
	return []Mode{ModeSimple, ModeArchitected}
}

func (m Mode) Valid() bool {
	return m == ModeSimple || m == ModeArchitected
}

func (m Mode) String() string {
	return string(m)
}

// Kind is what the user asked the pipeline to do with their text.
type Kind string

const (
	// KindBuild generates a new application from a description.
	KindBuild Kind = "build"
	// KindFix repairs prior code given an error payload.
	KindFix Kind = "fix"
	// KindDocument writes documentation for prior code.
	KindDocument Kind = "document"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBuild, KindFix, KindDocument:
		return true
	default:
		return false
	}
}

// ExpectsCode reports whether a response for this kind must carry a fenced
// code block.
func (k Kind) ExpectsCode() bool {
	return k != KindDocument
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind resolves a kind name, defaulting empty input to KindBuild.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindBuild, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown request kind %q", s)
	}
	return k, nil
}
