// Package eventstream publishes a transport-neutral event for every recorded
// tape so downstream consumers can follow dispatches without polling the
// tape store.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/tape"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTapeRecorded is emitted after a tape is persisted.
	EventTypeTapeRecorded = "spool.tape.recorded"
)

// TapeRecordedEvent is the payload published for a persisted tape. Frames are
// left out; consumers fetch the full tape from the store by id.
type TapeRecordedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Tape          TapeMeta  `json:"tape"`
}

// TapeMeta summarises the recorded dispatch.
type TapeMeta struct {
	ID          string       `json:"id"`
	Vendor      string       `json:"vendor"`
	Model       string       `json:"model,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	DurationMs  int64        `json:"duration_ms"`
	Outcome     string       `json:"outcome"`
	FrameCount  int          `json:"frame_count"`
	Metadata    llm.Metadata `json:"metadata"`
}

// NewTapeRecordedEvent builds the event for t, stamped now.
func NewTapeRecordedEvent(t *tape.Tape) *TapeRecordedEvent {
	return &TapeRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTapeRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Tape: TapeMeta{
			ID:          t.ID,
			Vendor:      t.Vendor,
			Model:       t.Model,
			StartedAt:   t.StartedAt,
			CompletedAt: t.CompletedAt,
			DurationMs:  t.Duration().Milliseconds(),
			Outcome:     t.Outcome,
			FrameCount:  len(t.Frames),
			Metadata:    t.Metadata,
		},
	}
}
