package nop

import (
	"context"

	"github.com/papercomputeco/spool/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTape validates input and otherwise does nothing.
func (p *Publisher) PublishTape(_ context.Context, event *eventstream.TapeRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTapeEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
