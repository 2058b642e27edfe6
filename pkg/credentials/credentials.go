package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"maps"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/spool/pkg/dotdir"
	"github.com/papercomputeco/spool/pkg/llm/provider"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// providerEnvVars maps vendor names to their conventional environment variables.
var providerEnvVars = map[string]string{
	provider.OpenAI:     "OPENAI_API_KEY",
	provider.Anthropic:  "ANTHROPIC_API_KEY",
	provider.Azure:      "AZURE_OPENAI_API_KEY",
	provider.Gemini:     "GEMINI_API_KEY",
	provider.Vertex:     "VERTEX_ACCESS_TOKEN",
	provider.Groq:       "GROQ_API_KEY",
	provider.Mistral:    "MISTRAL_API_KEY",
	provider.OpenRouter: "OPENROUTER_API_KEY",
	provider.DeepSeek:   "DEEPSEEK_API_KEY",
	provider.XAI:        "XAI_API_KEY",
	provider.TogetherAI: "TOGETHER_API_KEY",
	provider.Perplexity: "PERPLEXITY_API_KEY",
}

// Manager manages reading and writing credentials.toml in the .spool/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .spool/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Vendors: make(map[string]VendorCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Vendors == nil {
		creds.Vendors = make(map[string]VendorCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetKey stores an API key for vendor.
func (m *Manager) SetKey(vendor, key string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Vendors[vendor] = VendorCredential{APIKey: key}

	return m.Save(creds)
}

// GetKey returns the stored API key for vendor, or "" when none is stored.
func (m *Manager) GetKey(vendor string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Vendors[vendor].APIKey, nil
}

// RemoveKey deletes the stored credential of vendor.
func (m *Manager) RemoveKey(vendor string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Vendors, vendor)

	return m.Save(creds)
}

// ListVendors returns the names of vendors that have stored credentials.
func (m *Manager) ListVendors() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	return slices.Sorted(maps.Keys(creds.Vendors)), nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Resolve returns the API key for a vendor: the stored key when there is
// one, otherwise the vendor's environment variable. Vendors that need no key
// resolve to an empty string.
func (m *Manager) Resolve(vendor string) (string, error) {
	key, err := m.GetKey(vendor)
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}

	if env := EnvVarForProvider(vendor); env != "" {
		return os.Getenv(env), nil
	}
	return "", nil
}

// EnvVarForProvider returns the environment variable name for a given provider.
// Returns an empty string for unknown providers.
func EnvVarForProvider(provider string) string {
	return providerEnvVars[provider]
}

// SupportedProviders returns the vendors that take an API key, sorted.
func SupportedProviders() []string {
	var names []string
	for _, name := range provider.SupportedVendors() {
		if v, _ := provider.Lookup(name); v.RequiresKey {
			names = append(names, name)
		}
	}
	return names
}

// IsSupportedProvider returns true if the given provider takes an API key.
func IsSupportedProvider(name string) bool {
	v, ok := provider.Lookup(name)
	return ok && v.RequiresKey
}
