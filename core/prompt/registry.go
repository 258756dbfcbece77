// Package prompt turns a classified request into the system instructions and
// user message sent to the completion service.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/adalundhe/architect/core/request"
)

// Version is the template set shipped with this build.
const Version = "v1"

//go:embed templates/*
var templateFS embed.FS

// Template is the fixed system instruction text for one mode.
type Template struct {
	Version string
	System  string
}

// TemplateMissingError reports a mode with no registered template.
type TemplateMissingError struct {
	Mode request.Mode
}

func (e *TemplateMissingError) Error() string {
	return fmt.Sprintf("no prompt template registered for mode %q", e.Mode)
}

// Registry holds the templates keyed by mode, the kind addenda and the user
// message template.
type Registry struct {
	mu      sync.RWMutex
	version string
	modes   map[request.Mode]Template
	addenda map[request.Kind]string
	user    *template.Template
}

// NewRegistry loads the embedded template set.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		version: Version,
		modes:   make(map[request.Mode]Template),
		addenda: make(map[request.Kind]string),
	}

	modeFiles := map[request.Mode]string{
		request.ModeSimple:      "simple",
		request.ModeArchitected: "architected",
	}
	for mode, name := range modeFiles {
		text, err := readTemplate(name, Version, "txt")
		if err != nil {
			return nil, err
		}
		r.modes[mode] = Template{Version: Version, System: text}
	}

	for _, kind := range []request.Kind{request.KindFix, request.KindDocument} {
		text, err := readTemplate(string(kind), Version, "txt")
		if err != nil {
			return nil, err
		}
		r.addenda[kind] = text
	}

	user, err := template.New("user").Option("missingkey=error").
		ParseFS(templateFS, "templates/user_"+Version+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse user template: %w", err)
	}
	r.user = user.Lookup("user_" + Version + ".tmpl")
	if r.user == nil {
		return nil, fmt.Errorf("user template %s not found", Version)
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for callers that cannot recover from a
// broken build.
func MustNewRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

func readTemplate(name, version, ext string) (string, error) {
	path := fmt.Sprintf("templates/%s_%s.%s", name, version, ext)
	data, err := templateFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Version returns the registry's template version.
func (r *Registry) Version() string {
	return r.version
}

// Lookup returns the template for mode.
func (r *Registry) Lookup(mode request.Mode) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.modes[mode]
	if !ok {
		return Template{}, &TemplateMissingError{Mode: mode}
	}
	return t, nil
}

// Register replaces the template for mode.
func (r *Registry) Register(mode request.Mode, t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes[mode] = t
}

// Unregister removes the template for mode.
func (r *Registry) Unregister(mode request.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modes, mode)
}

func (r *Registry) addendum(kind request.Kind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addenda[kind]
}
