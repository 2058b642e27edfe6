package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/endpoint"
)

const (
	// DefaultBaseURL is the Gemini Developer API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// APIVersion is used when the access option "api_version" is unset.
	APIVersion = "v1beta"
)

// NewRequest builds the POST {base}/{version}/models/{model}:streamGenerateContent?alt=sse
// request. The model is addressed in the URL and the body is forwarded as
// is.
func NewRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	base, err := endpoint.Base(access.Endpoint, DefaultBaseURL)
	if err != nil {
		return nil, err
	}
	model, err := endpoint.Require("model", strings.TrimPrefix(req.Model, "models/"))
	if err != nil {
		return nil, err
	}

	body, err := endpoint.Patch(req.Body, nil)
	if err != nil {
		return nil, err
	}

	target := base + "/" + access.Option("api_version", APIVersion) +
		"/models/" + url.PathEscape(model) + ":streamGenerateContent?alt=sse"

	return endpoint.NewJSONRequest(ctx, target, body, map[string]string{
		"x-goog-api-key": access.APIKey,
		"Accept":         "text/event-stream",
	})
}
