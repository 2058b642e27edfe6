// Package tape records the raw wire frames of a dispatch so they can be
// inspected later or replayed through the same vendor parser.
package tape

import (
	"context"
	"time"

	"github.com/papercomputeco/spool/pkg/llm"
)

// OutcomeOK is the Outcome of a dispatch that ended with a parser close and
// no terminal issue.
const OutcomeOK = "ok"

// Frame is one framed upstream event.
type Frame struct {
	Name string `json:"name,omitempty"`
	Data string `json:"data"`
}

// Tape is the recording of one dispatch.
type Tape struct {
	// ID is the dispatch id.
	ID string `json:"id"`

	Vendor string `json:"vendor"`
	Model  string `json:"model,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Frames holds every upstream event in arrival order.
	Frames []Frame `json:"frames"`

	// Outcome is OutcomeOK or the symbol of the terminal issue.
	Outcome string `json:"outcome"`

	// Metadata is the merged result of every Set the dispatch produced.
	Metadata llm.Metadata `json:"metadata"`
}

// Duration is the wall time of the recorded dispatch.
func (t *Tape) Duration() time.Duration {
	return t.CompletedAt.Sub(t.StartedAt)
}

// Recorder persists and retrieves tapes.
type Recorder interface {
	// Record stores a tape. Recording an id that already exists is a no-op.
	Record(ctx context.Context, t *Tape) error

	// Get retrieves a tape by id. A missing tape yields NotFoundError.
	Get(ctx context.Context, id string) (*Tape, error)

	// List returns up to limit tapes, most recent first. A limit of zero or
	// less returns every tape.
	List(ctx context.Context, limit int) ([]*Tape, error)

	// Close releases any resources.
	Close() error
}
