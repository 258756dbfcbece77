package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	coreerrors "github.com/adalundhe/architect/core/errors"
	"github.com/adalundhe/architect/core/storage"
)

var providerEnvKeys = map[ProviderType]string{
	ProviderTypeGroq:      "GROQ_API_KEY",
	ProviderTypeOpenAI:    "OPENAI_API_KEY",
	ProviderTypeAnthropic: "ANTHROPIC_API_KEY",
	ProviderTypeGoogle:    "GOOGLE_API_KEY",
}

type credentialsFile struct {
	Credentials map[string]string `yaml:"credentials"`
}

// DefaultCredentialsPath is credentials.yaml in the user config directory.
func DefaultCredentialsPath() string {
	return storage.ResolveDirs().ConfigDir("credentials.yaml")
}

// CredentialResolver finds API keys in the environment, then in a
// credentials file.
type CredentialResolver struct {
	Path   string
	Getenv func(string) string
}

// NewCredentialResolver uses the process environment and the default path.
func NewCredentialResolver() *CredentialResolver {
	return &CredentialResolver{Path: DefaultCredentialsPath(), Getenv: os.Getenv}
}

// ResolveAPIKey returns the key for provider or a user-fixable error.
func (r *CredentialResolver) ResolveAPIKey(provider ProviderType) (string, error) {
	if key := r.fromEnv(provider); key != "" {
		return key, nil
	}

	key, err := r.fromFile(provider)
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}

	return "", coreerrors.WrapWithTier(coreerrors.TierUserFixable,
		fmt.Sprintf("no API key for %s: set %s or add it to %s", provider, EnvKeyName(provider), r.Path),
		coreerrors.ErrMissingAPIKey)
}

func (r *CredentialResolver) fromEnv(provider ProviderType) string {
	envKey, ok := providerEnvKeys[provider]
	if !ok || r.Getenv == nil {
		return ""
	}
	return r.Getenv(envKey)
}

func (r *CredentialResolver) fromFile(provider ProviderType) (string, error) {
	if r.Path == "" {
		return "", nil
	}
	creds, err := r.readFile()
	if err != nil {
		return "", err
	}
	return creds.Credentials[string(provider)], nil
}

// CredentialSource says where a provider's key comes from.
type CredentialSource string

const (
	SourceNone CredentialSource = ""
	SourceEnv  CredentialSource = "env"
	SourceFile CredentialSource = "file"
)

// Source reports where ResolveAPIKey would find the key for provider.
func (r *CredentialResolver) Source(provider ProviderType) (CredentialSource, error) {
	if r.fromEnv(provider) != "" {
		return SourceEnv, nil
	}
	key, err := r.fromFile(provider)
	if err != nil {
		return SourceNone, err
	}
	if key != "" {
		return SourceFile, nil
	}
	return SourceNone, nil
}

// RemoveAPIKey deletes the stored key for provider. It reports whether a key
// was present.
func (r *CredentialResolver) RemoveAPIKey(provider ProviderType) (bool, error) {
	creds, err := r.readFile()
	if err != nil {
		return false, err
	}
	if _, ok := creds.Credentials[string(provider)]; !ok {
		return false, nil
	}
	delete(creds.Credentials, string(provider))
	return true, r.writeFile(creds)
}

func (r *CredentialResolver) readFile() (credentialsFile, error) {
	var creds credentialsFile
	data, err := os.ReadFile(r.Path)
	if os.IsNotExist(err) {
		return creds, nil
	}
	if err != nil {
		return creds, fmt.Errorf("reading credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parsing credentials: %w", err)
	}
	return creds, nil
}

func (r *CredentialResolver) writeFile(creds credentialsFile) error {
	out, err := yaml.Marshal(&creds)
	if err != nil {
		return err
	}
	if err := storage.EnsureDir(filepath.Dir(r.Path), 0700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	return os.WriteFile(r.Path, out, 0600)
}

// SaveAPIKey stores key for provider in the credentials file with 0600
// permissions, keeping other providers' keys.
func (r *CredentialResolver) SaveAPIKey(provider ProviderType, key string) error {
	creds, err := r.readFile()
	if err != nil {
		return err
	}
	if creds.Credentials == nil {
		creds.Credentials = make(map[string]string)
	}
	creds.Credentials[string(provider)] = key
	return r.writeFile(creds)
}

// EnvKeyName returns the environment variable read for provider.
func EnvKeyName(provider ProviderType) string {
	return providerEnvKeys[provider]
}
