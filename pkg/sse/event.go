// Package sse frames upstream vendor byte streams into discrete events.
//
// Two framings are supported: Server-Sent Events, used by most vendors, and
// newline-delimited JSON, used by ollama. Both readers yield *Event values and
// can optionally tee the raw bytes they consume to a second writer, which the
// dispatch layer uses to keep a bounded excerpt of the upstream payload for
// diagnostics.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single framed event from the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	// NDJSON events never carry a type.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline). For NDJSON it is one line.
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// Source yields framed events. Next returns nil, nil when the upstream is
// exhausted.
type Source interface {
	Next() (*Event, error)
}

const (
	initialBufferSize = 64 * 1024
	maxEventSize      = 1024 * 1024
)
