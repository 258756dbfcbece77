// Package classifier decides whether a request warrants a single script or a
// layered application, from keyword signals in the normalized text.
package classifier

import (
	"fmt"
	"sort"
)

// Policy is the tunable classification configuration.
type Policy struct {
	// Threshold is the score at or above which a request is ARCHITECTED.
	Threshold float64 `yaml:"threshold"`

	IntegrationWeight float64 `yaml:"integration_weight"`
	StructuralWeight  float64 `yaml:"structural_weight"`

	// Integrations maps an integration name to the keywords that request it.
	// Entries containing *, ? or [ are glob patterns matched per word.
	Integrations map[string][]string `yaml:"integrations"`

	// HardIntegrations force ARCHITECTED whenever any of them is hit.
	HardIntegrations []string `yaml:"hard_integrations"`

	// Structural keywords signal multi-part applications.
	Structural []string `yaml:"structural"`
}

// DefaultPolicy returns the built-in keyword lists and weights.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:         3.0,
		IntegrationWeight: 2.0,
		StructuralWeight:  1.0,
		Integrations: map[string][]string{
			"database": {
				"database", "databases", "db", "sql", "sqlite", "postgres", "postgresql",
				"mysql", "mongodb", "supabase", "firebase", "persist*", "store data",
				"save data", "crud",
			},
			"auth": {
				"login", "log in", "logins", "sign in", "sign up", "signup", "authenticat*",
				"user accounts", "user account", "multi-user", "password", "passwords",
				"oauth", "user roles",
			},
			"scheduling": {
				"schedule", "scheduled", "scheduler", "cron", "recurring", "every day",
				"every hour", "background job", "background jobs", "reminder", "reminders",
			},
			"external_api": {
				"api", "apis", "rest api", "webhook", "webhooks", "third-party", "integrat*",
				"fetch from", "weather api", "stock api",
			},
			"ai": {
				"llm", "gpt", "openai", "groq", "chatbot", "machine learning", "embedding*",
				"langchain", "rag",
			},
			"payments": {
				"payment", "payments", "stripe", "checkout", "subscription", "subscriptions",
				"billing", "invoice*",
			},
			"email": {
				"email", "emails", "e-mail", "smtp", "newsletter", "send mail",
			},
			"file_storage": {
				"file upload", "upload files", "uploads", "s3", "bucket", "cloud storage",
				"attachments",
			},
		},
		HardIntegrations: []string{"auth", "database"},
		Structural: []string{
			"multiple pages", "multi-page", "multipage", "pages", "dashboard", "dashboards",
			"real-time", "realtime", "live updates", "navigation", "sidebar navigation",
			"gamification", "pwa", "admin panel", "charts", "analytics", "notifications",
			"tabs", "workflow",
		},
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return fmt.Errorf("classifier: threshold must be positive, got %v", p.Threshold)
	}
	if p.IntegrationWeight < 0 || p.StructuralWeight < 0 {
		return fmt.Errorf("classifier: weights must not be negative")
	}
	for name, keywords := range p.Integrations {
		if name == "" {
			return fmt.Errorf("classifier: integration with empty name")
		}
		if len(keywords) == 0 {
			return fmt.Errorf("classifier: integration %q has no keywords", name)
		}
	}
	for _, hard := range p.HardIntegrations {
		if _, ok := p.Integrations[hard]; !ok {
			return fmt.Errorf("classifier: hard integration %q is not a configured integration", hard)
		}
	}
	return nil
}

func (p Policy) integrationNames() []string {
	names := make([]string, 0, len(p.Integrations))
	for name := range p.Integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
