// Package kafka publishes tape events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/spool/pkg/eventstream"
)

const defaultWriteTimeout = 10 * time.Second

// Config configures the Kafka publisher.
type Config struct {
	// Brokers are host:port addresses of the bootstrap brokers.
	Brokers []string

	// Topic receives one message per recorded tape.
	Topic string

	// WriteTimeout bounds a single publish (defaults to 10s).
	WriteTimeout time.Duration
}

// Publisher writes each event as a JSON message keyed by tape id, so every
// event for one tape lands on the same partition.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka publisher. No connection is made until the
// first publish.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  c.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			WriteTimeout:           c.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Topic returns the topic events are written to.
func (p *Publisher) Topic() string {
	return p.writer.Topic
}

// PublishTape writes event to the topic.
func (p *Publisher) PublishTape(ctx context.Context, event *eventstream.TapeRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTapeEvent
	}

	msg, err := message(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing tape %s: %w", event.Tape.ID, err)
	}
	return nil
}

// Close flushes pending writes and closes broker connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(event *eventstream.TapeRecordedEvent) (kafkago.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encoding tape event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(event.Tape.ID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}, nil
}
