// Package provider is the closed registry of vendors the dispatch layer can
// talk to. Each Vendor pairs a request builder with a parser factory for its
// wire dialect.
package provider

import (
	"context"
	"net/http"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/parse"
)

// Parser translates one vendor's wire events into actions. A Parser holds
// the parse context of a single dispatch and is never shared.
type Parser interface {
	// Parse consumes one event and returns the actions it yields in order.
	// On error, the returned actions are those produced before the failure.
	Parse(name, data string) ([]llm.Action, error)

	// End is called once when the upstream body ends cleanly. It closes the
	// stream gracefully when the vendor had signalled completion and
	// returns a *TruncatedError otherwise.
	End() ([]llm.Action, error)
}

// ParserOptions configures a parser instance.
type ParserOptions = parse.Options

// TruncatedError is returned by Parser.End when the stream ended before the
// vendor signalled completion.
type TruncatedError = parse.TruncatedError

// Framing selects how the upstream body is split into events.
type Framing int

const (
	// FramingSSE is text/event-stream.
	FramingSSE Framing = iota

	// FramingNDJSON is one JSON document per line.
	FramingNDJSON
)

func (f Framing) String() string {
	switch f {
	case FramingSSE:
		return "sse"
	case FramingNDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// RequestFunc builds the outbound request for one dispatch.
type RequestFunc func(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error)

// ParserFunc creates a parser with a fresh parse context.
type ParserFunc func(opts ParserOptions) Parser

// Vendor is one registry entry.
type Vendor struct {
	// Name is the identifier callers put in llm.Access.Vendor.
	Name string

	// Dialect is the wire dialect spoken, e.g. "openai" for groq.
	Dialect string

	// Framing of the response body.
	Framing Framing

	// RequiresKey reports whether the vendor rejects requests without an
	// API key.
	RequiresKey bool

	request RequestFunc
	parser  ParserFunc
}

// NewRequest builds the outbound streaming request.
func (v Vendor) NewRequest(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*http.Request, error) {
	return v.request(ctx, access, req)
}

// NewParser creates a parser reporting under the vendor's name.
func (v Vendor) NewParser(opts ParserOptions) Parser {
	if opts.Vendor == "" {
		opts.Vendor = v.Name
	}
	return v.parser(opts)
}
