package eventstream

import "errors"

// ErrNilTapeEvent indicates a nil tape event payload was provided to a publisher.
var ErrNilTapeEvent = errors.New("nil tape event")
