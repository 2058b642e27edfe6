package provider

import (
	"encoding/json"
	"strings"
)

// Detect guesses the vendor a request body was shaped for. It is used by the
// CLI when no vendor was given and returns "" when nothing matches.
//
// Checks run from the most to the least distinctive body shape.
func Detect(body []byte) string {
	var probe struct {
		Model     string          `json:"model"`
		MaxTokens *int            `json:"max_tokens"`
		System    any             `json:"system"`
		Contents  json.RawMessage `json:"contents"`
		Options   json.RawMessage `json:"options"`
		KeepAlive json.RawMessage `json:"keep_alive"`
		Version   string          `json:"anthropic_version"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}

	model := strings.ToLower(probe.Model)
	switch {
	case probe.Version != "":
		return Vertex
	case len(probe.Contents) > 0:
		return Gemini
	case strings.HasPrefix(model, "claude-"):
		return Anthropic
	case probe.MaxTokens != nil && probe.System != nil:
		return Anthropic
	case len(probe.Options) > 0 || len(probe.KeepAlive) > 0:
		return Ollama
	case strings.HasPrefix(model, "gemini-"):
		return Gemini
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return OpenAI
	case strings.Contains(model, ":"):
		// Ollama tags its models, e.g. "llama3.2:3b".
		return Ollama
	default:
		return ""
	}
}
