package dispatch

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/papercomputeco/spool/pkg/resilience"
)

// excerptSize is how many trailing upstream bytes a diagnostic excerpt keeps.
const excerptSize = 1024

// excerpt is an io.Writer keeping only the last excerptSize bytes written.
type excerpt struct {
	buf []byte
}

func (e *excerpt) Write(p []byte) (int, error) {
	n := len(p)
	if n >= excerptSize {
		e.buf = append(e.buf[:0], p[n-excerptSize:]...)
		return n, nil
	}

	e.buf = append(e.buf, p...)
	if over := len(e.buf) - excerptSize; over > 0 {
		e.buf = append(e.buf[:0], e.buf[over:]...)
	}
	return n, nil
}

func (e *excerpt) String() string {
	return strings.ToValidUTF8(string(e.buf), "")
}

var _ io.Writer = (*excerpt)(nil)

// errorBodyLimit bounds how much of a non-2xx body is read.
const errorBodyLimit = 64 * 1024

// summarize extracts the human message from a vendor error body. Vendors
// use {"error":{"message":...}}, {"error":"..."} or {"message":...}.
func summarize(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		var msg string
		if json.Unmarshal(envelope.Error, &msg) == nil && msg != "" {
			return msg
		}

		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}

		if envelope.Message != "" {
			return envelope.Message
		}
	}

	return "upstream returned an error"
}

// bounded renders s through the strict value bound used for diagnostics.
func bounded(s string) string {
	out, _ := resilience.BoundedCopy(s, resilience.StrictValueLimit).(string)
	return out
}
