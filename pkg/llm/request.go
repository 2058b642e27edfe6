package llm

import "encoding/json"

// Access identifies the vendor, endpoint and credentials for one dispatch.
// It is owned by the caller and never modified by the dispatch layer.
type Access struct {
	// Vendor is the registry identifier (e.g. "anthropic", "openai", "ollama").
	Vendor string `json:"vendor"`

	// Endpoint overrides the vendor's default base URL, e.g.
	// "http://localhost:11434". Empty means the vendor default.
	Endpoint string `json:"endpoint,omitempty"`

	// APIKey is the vendor credential. Some vendors (ollama, lmstudio) need none.
	APIKey string `json:"-"`

	// Headers are extra outbound headers (e.g. "OpenAI-Organization").
	Headers map[string]string `json:"headers,omitempty"`

	// Options carries vendor specific extras such as the Azure "api_version"
	// or the Vertex "project" and "region".
	Options map[string]string `json:"options,omitempty"`
}

// Option returns the named vendor option, or fallback when unset.
func (a Access) Option(name, fallback string) string {
	if v, ok := a.Options[name]; ok && v != "" {
		return v
	}
	return fallback
}

// GenerateRequest is one generation request. Body is already shaped for the
// target vendor by an upstream request builder.
type GenerateRequest struct {
	// Model is the vendor model identifier. Vendors that address the model in
	// the URL (gemini, azure, vertex) require it.
	Model string `json:"model"`

	// Body is the provider-native JSON request body.
	Body json.RawMessage `json:"body"`
}
