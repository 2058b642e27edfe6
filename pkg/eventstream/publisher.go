package eventstream

import "context"

// Publisher publishes tape events to an event stream backend.
type Publisher interface {
	PublishTape(ctx context.Context, event *TapeRecordedEvent) error
	Close() error
}
