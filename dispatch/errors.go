package dispatch

import (
	"fmt"
)

// Error symbols reported by the dispatcher.
const (
	SymbolUnsupportedVendor = "dispatch-unsupported-vendor"
	SymbolFetchError        = "dispatch-fetch-error"
	SymbolHTTPError         = "dispatch-http-error"
	SymbolReadError         = "dispatch-read-error"
	SymbolIdleTimeout       = "dispatch-idle-timeout"
)

// UnsupportedVendorError is returned by Dispatch for a vendor identifier
// missing from the registry. No network I/O happens in that case.
type UnsupportedVendorError struct {
	Vendor string
}

func (e *UnsupportedVendorError) Error() string {
	return fmt.Sprintf("unsupported vendor %q", e.Vendor)
}

// Symbol implements llm.SymbolError.
func (e *UnsupportedVendorError) Symbol() string { return SymbolUnsupportedVendor }

// UpstreamKind classifies transport failures.
type UpstreamKind int

const (
	// KindFetch is a failure to build or send the request.
	KindFetch UpstreamKind = iota
	// KindHTTP is a non-2xx response.
	KindHTTP
	// KindRead is a failure while reading the response body.
	KindRead
	// KindIdleTimeout is an upstream that went quiet for too long.
	KindIdleTimeout
)

// UpstreamError is a transport failure talking to the vendor. It always
// ends the stream with an Issue and a ParserClose.
type UpstreamError struct {
	Kind   UpstreamKind
	Vendor string

	// Status is the HTTP status for KindHTTP.
	Status int

	// Message is a human readable summary.
	Message string

	// URL and Excerpt are only set in diagnostics mode.
	URL     string
	Excerpt string

	Err error
}

func (e *UpstreamError) Error() string {
	msg := e.Vendor + ": " + e.Message
	if e.Kind == KindHTTP {
		msg = fmt.Sprintf("%s: status %d: %s", e.Vendor, e.Status, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Excerpt != "" {
		msg += "; upstream excerpt: " + e.Excerpt
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Symbol implements llm.SymbolError.
func (e *UpstreamError) Symbol() string {
	switch e.Kind {
	case KindHTTP:
		return SymbolHTTPError
	case KindRead:
		return SymbolReadError
	case KindIdleTimeout:
		return SymbolIdleTimeout
	default:
		return SymbolFetchError
	}
}
