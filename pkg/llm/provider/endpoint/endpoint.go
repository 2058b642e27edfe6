// Package endpoint builds outbound vendor HTTP requests: base URL
// resolution, streaming body patches and JSON request construction.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrMissingOption is wrapped when a vendor needs an access option or request
// field that the caller did not supply.
var ErrMissingOption = errors.New("missing required option")

// Base returns override when set, otherwise fallback, without a trailing
// slash.
func Base(override, fallback string) (string, error) {
	base := override
	if base == "" {
		base = fallback
	}
	if base == "" {
		return "", fmt.Errorf("endpoint: %w", ErrMissingOption)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid endpoint %q: scheme must be http or https", base)
	}
	return strings.TrimRight(base, "/"), nil
}

// Require returns value, or an error naming option when it is empty.
func Require(option, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s: %w", option, ErrMissingOption)
	}
	return value, nil
}

// Patch rewrites top-level keys of a JSON object body. Keys in set are
// added or overwritten; keys in drop are removed. Every other key is kept
// byte for byte. An empty body is treated as an empty object.
func Patch(body json.RawMessage, set map[string]any, drop ...string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("request body must be a JSON object: %w", err)
		}
	}

	for _, k := range drop {
		delete(fields, k)
	}
	for k, v := range set {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("patching %q: %w", k, err)
		}
		fields[k] = raw
	}

	return json.Marshal(fields)
}

// MergeObject sets key to an object holding the existing object at key (if
// any) with the given fields added. It is used for nested switches such as
// OpenAI's stream_options.include_usage.
func MergeObject(body json.RawMessage, key string, add map[string]any) (json.RawMessage, error) {
	var probe map[string]json.RawMessage
	existing := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &probe); err != nil {
			return nil, fmt.Errorf("request body must be a JSON object: %w", err)
		}
		if raw, ok := probe[key]; ok {
			if err := json.Unmarshal(raw, &existing); err != nil || existing == nil {
				existing = map[string]any{}
			}
		}
	}

	for k, v := range add {
		existing[k] = v
	}
	return Patch(body, map[string]any{key: existing})
}

// NewJSONRequest builds a POST carrying body with the given headers.
func NewJSONRequest(ctx context.Context, target string, body json.RawMessage, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return req, nil
}
