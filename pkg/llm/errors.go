package llm

import "errors"

// SymbolError is an error carrying a short machine-stable symbol. Every
// terminal failure of a dispatch is reported to the consumer as an Issue
// built from a SymbolError.
type SymbolError interface {
	error
	Symbol() string
}

// SymbolInternal is used for errors that do not carry their own symbol.
const SymbolInternal = "dispatch-internal-error"

// IssueFromError converts err into an Issue. Errors that implement
// SymbolError anywhere in their chain contribute their symbol.
func IssueFromError(err error) Issue {
	var se SymbolError
	if errors.As(err, &se) {
		return Issue{Symbol: se.Symbol(), Message: err.Error()}
	}
	return Issue{Symbol: SymbolInternal, Message: err.Error()}
}
