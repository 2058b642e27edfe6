package ollama

import (
	"context"
	"net/http"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/endpoint"
)

// DefaultBaseURL is a local Ollama server.
const DefaultBaseURL = "http://localhost:11434"

// NewRequest builds the streaming POST {base}/api/chat request. Ollama needs
// no key; one is sent as a bearer token for authenticating reverse proxies.
func NewRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	base, err := endpoint.Base(access.Endpoint, DefaultBaseURL)
	if err != nil {
		return nil, err
	}

	body, err := endpoint.Patch(req.Body, map[string]any{"stream": true})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Accept": "application/x-ndjson"}
	if access.APIKey != "" {
		headers["Authorization"] = "Bearer " + access.APIKey
	}
	return endpoint.NewJSONRequest(ctx, base+"/api/chat", body, headers)
}
