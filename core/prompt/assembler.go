package prompt

import (
	"strings"

	"github.com/adalundhe/architect/core/classifier"
	"github.com/adalundhe/architect/core/request"
)

// AssembledPrompt is the request as the completion service sees it. It is a
// value; nothing downstream modifies it.
type AssembledPrompt struct {
	System  string       `json:"system_instructions"`
	User    string       `json:"user_message"`
	Mode    request.Mode `json:"mode"`
	Kind    request.Kind `json:"kind"`
	Version string       `json:"template_version"`
}

var tasks = map[request.Kind]map[request.Mode]string{
	request.KindBuild: {
		request.ModeSimple:      "Build the Streamlit app described in the request as a single self-contained script.",
		request.ModeArchitected: "Build the Streamlit app described in the request. Strictly follow the Architecture Rules and implement every listed integration.",
	},
	request.KindFix: {
		request.ModeSimple:      "Fix the prior code so the error no longer occurs. Keep it a single self-contained script.",
		request.ModeArchitected: "Fix the prior code so the error no longer occurs. Keep its existing layers and integrations.",
	},
	request.KindDocument: {
		request.ModeSimple:      "Document the prior code for the request below.",
		request.ModeArchitected: "Document the prior code for the request below, including each integration and the secrets it needs.",
	},
}

type userSlots struct {
	Task         string
	Request      string
	History      string
	Integrations []string
	PriorCode    string
	ErrorContext string
}

// Assembler builds prompts from a registry. Output is a pure function of
// the request and signal.
type Assembler struct {
	registry *Registry
}

func NewAssembler(registry *Registry) *Assembler {
	return &Assembler{registry: registry}
}

// Registry returns the template registry in use.
func (a *Assembler) Registry() *Registry {
	return a.registry
}

// Assemble renders the prompt for req. It returns *TemplateMissingError when
// the request's mode has no template.
func (a *Assembler) Assemble(req *request.GenerationRequest, sig classifier.Signal) (AssembledPrompt, error) {
	tmpl, err := a.registry.Lookup(req.Mode())
	if err != nil {
		return AssembledPrompt{}, err
	}

	system := tmpl.System
	if add := a.registry.addendum(req.Kind()); add != "" {
		system += "\n\n" + add
	}

	slots := userSlots{
		Task:         tasks[req.Kind()][req.Mode()],
		Request:      req.NormalizedText(),
		History:      req.History(),
		PriorCode:    req.PriorCode(),
		ErrorContext: req.ErrorContext(),
	}
	if req.Mode() == request.ModeArchitected {
		slots.Integrations = sig.RequestedIntegrations
	}

	var b strings.Builder
	if err := a.registry.user.Execute(&b, slots); err != nil {
		return AssembledPrompt{}, err
	}

	return AssembledPrompt{
		System:  system,
		User:    b.String(),
		Mode:    req.Mode(),
		Kind:    req.Kind(),
		Version: tmpl.Version,
	}, nil
}
