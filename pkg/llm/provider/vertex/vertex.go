// Package vertex builds requests for Anthropic Claude models served by
// Google Cloud Vertex AI. The response stream is the Anthropic dialect.
//
// The request differs from the Anthropic Messages API in two ways:
//   - "model" is not passed in the body (it is addressed in the endpoint URL)
//   - "anthropic_version" is passed in the body rather than as a header
package vertex

import (
	"context"
	"net/http"
	"net/url"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/endpoint"
)

const (
	// Name is the registry name.
	Name = "vertex"

	// AnthropicVersion is the body-level version Vertex requires.
	AnthropicVersion = "vertex-2023-10-16"

	// DefaultRegion is used when the access option "region" is unset.
	DefaultRegion = "us-east5"
)

// NewRequest builds the streamRawPredict POST. The access options "project"
// (required) and "region" select the publisher endpoint; APIKey carries an
// OAuth access token.
func NewRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	project, err := endpoint.Require("project", access.Option("project", ""))
	if err != nil {
		return nil, err
	}
	model, err := endpoint.Require("model", req.Model)
	if err != nil {
		return nil, err
	}
	region := access.Option("region", DefaultRegion)

	base, err := endpoint.Base(access.Endpoint, defaultBaseURL(region))
	if err != nil {
		return nil, err
	}

	body, err := endpoint.Patch(req.Body, map[string]any{
		"stream":            true,
		"anthropic_version": access.Option("anthropic_version", AnthropicVersion),
	}, "model")
	if err != nil {
		return nil, err
	}

	target := base + "/v1/projects/" + url.PathEscape(project) +
		"/locations/" + url.PathEscape(region) +
		"/publishers/anthropic/models/" + url.PathEscape(model) + ":streamRawPredict"

	headers := map[string]string{"Accept": "text/event-stream"}
	if access.APIKey != "" {
		headers["Authorization"] = "Bearer " + access.APIKey
	}
	return endpoint.NewJSONRequest(ctx, target, body, headers)
}

func defaultBaseURL(region string) string {
	if region == "global" {
		return "https://aiplatform.googleapis.com"
	}
	return "https://" + region + "-aiplatform.googleapis.com"
}
