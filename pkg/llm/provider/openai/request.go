package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/endpoint"
)

// Endpoint describes where an OpenAI-compatible vendor serves chat
// completions.
type Endpoint struct {
	// BaseURL is the default base, replaced by llm.Access.Endpoint when set.
	BaseURL string

	// Path is appended to the base.
	Path string

	// IncludeUsage requests a trailing usage chunk via
	// stream_options.include_usage.
	IncludeUsage bool
}

// Default endpoints of the compatible vendors.
var (
	OpenAI     = Endpoint{BaseURL: "https://api.openai.com", Path: "/v1/chat/completions", IncludeUsage: true}
	Groq       = Endpoint{BaseURL: "https://api.groq.com/openai", Path: "/v1/chat/completions", IncludeUsage: true}
	Mistral    = Endpoint{BaseURL: "https://api.mistral.ai", Path: "/v1/chat/completions"}
	OpenRouter = Endpoint{BaseURL: "https://openrouter.ai/api", Path: "/v1/chat/completions", IncludeUsage: true}
	DeepSeek   = Endpoint{BaseURL: "https://api.deepseek.com", Path: "/v1/chat/completions", IncludeUsage: true}
	XAI        = Endpoint{BaseURL: "https://api.x.ai", Path: "/v1/chat/completions", IncludeUsage: true}
	TogetherAI = Endpoint{BaseURL: "https://api.together.xyz", Path: "/v1/chat/completions", IncludeUsage: true}
	Perplexity = Endpoint{BaseURL: "https://api.perplexity.ai", Path: "/chat/completions"}
	LMStudio   = Endpoint{BaseURL: "http://localhost:1234", Path: "/v1/chat/completions", IncludeUsage: true}
	LocalAI    = Endpoint{BaseURL: "http://localhost:8080", Path: "/v1/chat/completions", IncludeUsage: true}
)

// AzureAPIVersion is used when the access option "api_version" is unset.
const AzureAPIVersion = "2024-10-21"

// NewRequest builds the streaming POST for e.
func (e Endpoint) NewRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	base, err := endpoint.Base(access.Endpoint, e.BaseURL)
	if err != nil {
		return nil, err
	}

	body, err := streamingBody(req.Body, e.IncludeUsage)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Accept": "text/event-stream"}
	if access.APIKey != "" {
		headers["Authorization"] = "Bearer " + access.APIKey
	}
	return endpoint.NewJSONRequest(ctx, base+e.Path, body, headers)
}

// NewAzureRequest builds the streaming POST for an Azure OpenAI deployment.
// Azure has no default base URL and addresses the deployment by model.
func NewAzureRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	base, err := endpoint.Base(access.Endpoint, "")
	if err != nil {
		return nil, err
	}
	deployment, err := endpoint.Require("model", req.Model)
	if err != nil {
		return nil, err
	}

	body, err := streamingBody(req.Body, true)
	if err != nil {
		return nil, err
	}

	target := base + "/openai/deployments/" + url.PathEscape(deployment) +
		"/chat/completions?api-version=" + url.QueryEscape(access.Option("api_version", AzureAPIVersion))

	return endpoint.NewJSONRequest(ctx, target, body, map[string]string{
		"api-key": access.APIKey,
		"Accept":  "text/event-stream",
	})
}

func streamingBody(body json.RawMessage, includeUsage bool) (json.RawMessage, error) {
	body, err := endpoint.Patch(body, map[string]any{"stream": true})
	if err != nil {
		return nil, err
	}
	if !includeUsage {
		return body, nil
	}
	return endpoint.MergeObject(body, "stream_options", map[string]any{"include_usage": true})
}
