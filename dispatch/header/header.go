// Package header filters the extra headers a caller asks spool to send
// upstream.
//
// Headers reach the vendor along two legs:
//
//	API client --> spool API --> Dispatcher --> Upstream LLM vendor
//
// An API client tags headers for the vendor with the ForwardPrefix. The
// dispatcher then applies them, together with llm.Access.Headers, on top of
// the headers the vendor request builder set.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ForwardPrefix marks an inbound API header destined for the upstream vendor,
// e.g. "X-Spool-Upstream-OpenAI-Organization: org-1".
const ForwardPrefix = "X-Spool-Upstream-"

// Handler manages headers between the dispatch legs.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of headers never applied to the upstream request.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is derived from the vendor URL by Go's http.Transport.
	"Host": {},

	// Accept-Encoding is left to Go's http.Transport so that it adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the stream.
	"Accept-Encoding": {},

	// The body is always the JSON built by the vendor request builder.
	"Content-Length": {},
	"Content-Type":   {},
}

// SetUpstreamRequestHeaders applies extra to req, dropping headers the
// dispatcher must own. Extra headers override the vendor defaults.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request, extra map[string]string) {
	for k, v := range extra {
		k = http.CanonicalHeaderKey(k)
		if _, skip := skipRequest[k]; skip || v == "" {
			continue
		}
		req.Header.Set(k, v)
	}
}

// ForwardedHeaders collects the ForwardPrefix headers of an inbound API
// request with the prefix removed. It returns nil when there are none.
func (h *Handler) ForwardedHeaders(c *fiber.Ctx) map[string]string {
	var out map[string]string

	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		name, ok := strings.CutPrefix(k, ForwardPrefix)
		if !ok || name == "" {
			return
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = string(value)
	})

	return out
}
