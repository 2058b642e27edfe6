package resilience

import "fmt"

// SymbolUnknownWireValue is the issue symbol for UnknownWireValueError.
const SymbolUnknownWireValue = "wire-unknown-value"

// UnknownWireValueError is returned in strict mode when a vendor sends an
// enumeration value, event name or block type the parser does not know.
// Value is a bounded deep copy of what was received.
type UnknownWireValueError struct {
	Context string
	Field   string
	Value   any
}

// Error names the field and context only. The value may carry vendor
// payload; see Policy.Describe.
func (e *UnknownWireValueError) Error() string {
	return fmt.Sprintf("unknown value for %s in %s", e.Field, e.Context)
}

func (e *UnknownWireValueError) Symbol() string {
	return SymbolUnknownWireValue
}
