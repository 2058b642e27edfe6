package wire

import "fmt"

// Error symbols reported to consumers.
const (
	SymbolMalformedEvent  = "wire-malformed-event"
	SymbolSchemaViolation = "wire-schema-violation"
)

// MalformedEventError is returned when event data cannot be parsed as JSON
// at all. It is fatal regardless of strictness: there is no safe default.
type MalformedEventError struct {
	Vendor string
	Err    error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("%s: malformed event data: %v", e.Vendor, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// Symbol implements llm.SymbolError.
func (e *MalformedEventError) Symbol() string { return SymbolMalformedEvent }

// SchemaViolationError is returned when well-formed JSON does not match the
// vendor's wire schema: a known field has the wrong type or a required field
// is missing.
type SchemaViolationError struct {
	Vendor string

	// Path is the dotted JSON path of the offending field, e.g.
	// "choices.0.delta.content". Empty means the document root.
	Path string

	// Reason names the failed rule ("type", "required", "min", ...).
	Reason string

	Err error
}

func (e *SchemaViolationError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("%s: schema violation at %s (%s)", e.Vendor, path, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// Symbol implements llm.SymbolError.
func (e *SchemaViolationError) Symbol() string { return SymbolSchemaViolation }
