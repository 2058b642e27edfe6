package anthropic

import (
	"context"
	"net/http"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/endpoint"
)

const (
	// DefaultBaseURL is the public Anthropic API.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent in the anthropic-version header unless the access
	// option "anthropic_version" overrides it.
	APIVersion = "2023-06-01"
)

// NewRequest builds the streaming POST {base}/v1/messages request.
func NewRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	base, err := endpoint.Base(access.Endpoint, DefaultBaseURL)
	if err != nil {
		return nil, err
	}

	body, err := endpoint.Patch(req.Body, map[string]any{"stream": true})
	if err != nil {
		return nil, err
	}

	return endpoint.NewJSONRequest(ctx, base+"/v1/messages", body, map[string]string{
		"x-api-key":         access.APIKey,
		"anthropic-version": access.Option("anthropic_version", APIVersion),
		"Accept":            "text/event-stream",
	})
}
