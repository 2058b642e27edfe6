package parse

import "fmt"

// Parser-level issue symbols.
const (
	SymbolTruncated   = "dispatch-truncated"
	SymbolVendorError = "vendor-error"
	SymbolBlocked     = "vendor-blocked"
)

// TruncatedError is returned by a parser's End when the upstream body ended
// before the vendor signalled completion.
type TruncatedError struct {
	Vendor string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s stream ended before completion", e.Vendor)
}

func (e *TruncatedError) Symbol() string {
	return SymbolTruncated
}
