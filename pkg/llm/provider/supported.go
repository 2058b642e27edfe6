package provider

import (
	"slices"

	"github.com/papercomputeco/spool/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/spool/pkg/llm/provider/gemini"
	"github.com/papercomputeco/spool/pkg/llm/provider/ollama"
	"github.com/papercomputeco/spool/pkg/llm/provider/openai"
	"github.com/papercomputeco/spool/pkg/llm/provider/vertex"
)

// Supported vendor identifiers.
const (
	Anthropic  = "anthropic"
	OpenAI     = "openai"
	Azure      = "azure"
	Gemini     = "gemini"
	Ollama     = "ollama"
	Vertex     = "vertex"
	Groq       = "groq"
	Mistral    = "mistral"
	OpenRouter = "openrouter"
	DeepSeek   = "deepseek"
	XAI        = "xai"
	TogetherAI = "togetherai"
	Perplexity = "perplexity"
	LMStudio   = "lmstudio"
	LocalAI    = "localai"
)

var (
	newAnthropicParser = func(o ParserOptions) Parser { return anthropic.NewParser(o) }
	newOpenAIParser    = func(o ParserOptions) Parser { return openai.NewParser(o) }
	newGeminiParser    = func(o ParserOptions) Parser { return gemini.NewParser(o) }
	newOllamaParser    = func(o ParserOptions) Parser { return ollama.NewParser(o) }
)

// registry is built once and never modified.
var registry = func() map[string]Vendor {
	vendors := []Vendor{
		{Name: Anthropic, Dialect: anthropic.Name, Framing: FramingSSE, RequiresKey: true, request: anthropic.NewRequest, parser: newAnthropicParser},
		{Name: Vertex, Dialect: anthropic.Name, Framing: FramingSSE, RequiresKey: true, request: vertex.NewRequest, parser: newAnthropicParser},
		{Name: Gemini, Dialect: gemini.Name, Framing: FramingSSE, RequiresKey: true, request: gemini.NewRequest, parser: newGeminiParser},
		{Name: Ollama, Dialect: ollama.Name, Framing: FramingNDJSON, request: ollama.NewRequest, parser: newOllamaParser},
		{Name: Azure, Dialect: openai.Name, Framing: FramingSSE, RequiresKey: true, request: openai.NewAzureRequest, parser: newOpenAIParser},
		compatible(OpenAI, openai.OpenAI, true),
		compatible(Groq, openai.Groq, true),
		compatible(Mistral, openai.Mistral, true),
		compatible(OpenRouter, openai.OpenRouter, true),
		compatible(DeepSeek, openai.DeepSeek, true),
		compatible(XAI, openai.XAI, true),
		compatible(TogetherAI, openai.TogetherAI, true),
		compatible(Perplexity, openai.Perplexity, true),
		compatible(LMStudio, openai.LMStudio, false),
		compatible(LocalAI, openai.LocalAI, false),
	}

	m := make(map[string]Vendor, len(vendors))
	for _, v := range vendors {
		m[v.Name] = v
	}
	return m
}()

func compatible(name string, e openai.Endpoint, requiresKey bool) Vendor {
	return Vendor{
		Name:        name,
		Dialect:     openai.Name,
		Framing:     FramingSSE,
		RequiresKey: requiresKey,
		request:     e.NewRequest,
		parser:      newOpenAIParser,
	}
}

// Lookup returns the registered vendor for name.
func Lookup(name string) (Vendor, bool) {
	v, ok := registry[name]
	return v, ok
}

// SupportedVendors returns every registered vendor identifier, sorted.
func SupportedVendors() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
