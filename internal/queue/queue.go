// Package queue provides abstractions for the telemetry message queue
package queue

import (
	"context"
	"time"
)

// Message represents a telemetry message from the queue
type Message interface {
	// ID returns the unique message identifier
	ID() string

	// Data returns the message payload
	Data() []byte

	// Subject returns the message subject
	Subject() string

	// Ack acknowledges successful processing
	Ack() error

	// Nak signals processing failure (will be redelivered)
	Nak() error

	// NakWithDelay signals failure with a delay before redelivery
	NakWithDelay(delay time.Duration) error

	// InProgress extends the processing deadline
	InProgress() error

	// Metadata returns message metadata
	Metadata() map[string]string
}

// Publisher publishes messages to the queue
type Publisher interface {
	// Publish sends a message to the specified subject
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishWithDeduplication sends a message with a deduplication ID
	PublishWithDeduplication(ctx context.Context, subject string, data []byte, deduplicationID string) error

	// Close closes the publisher
	Close() error
}

// Consumer consumes messages from the queue
type Consumer interface {
	// Consume starts consuming messages and calls the handler for each.
	// This blocks until the context is cancelled or an error occurs.
	Consume(ctx context.Context, handler func(Message) error) error

	// Close closes the consumer
	Close() error
}

// Config holds queue configuration
type Config struct {
	// Type is the queue implementation type: "embedded" or "nats"
	Type string

	// DataDir is the data directory for embedded NATS
	DataDir string

	// NATS holds NATS-specific configuration
	NATS NATSConfig
}

// NATSConfig holds NATS-specific configuration
type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string

	// StreamName is the JetStream stream name
	StreamName string

	// ConsumerName is the durable consumer name
	ConsumerName string

	// Subjects is the list of subjects for the stream
	Subjects []string

	// AckWait is the time to wait for message acknowledgment
	AckWait time.Duration

	// MaxDeliver is the maximum number of delivery attempts
	MaxDeliver int

	// MaxAge is the maximum age of messages in the stream
	MaxAge time.Duration

	// MaxPending is the maximum number of unacknowledged messages
	MaxPending int
}

// DefaultConfig returns default queue configuration
func DefaultConfig() *Config {
	return &Config{
		Type:    "embedded",
		DataDir: "./data/nats",
		NATS: NATSConfig{
			StreamName:   "TELEMETRY",
			ConsumerName: "puretrack-ingest",
			Subjects:     []string{"telemetry.>"},
			AckWait:      2 * time.Minute,
			MaxDeliver:   5,
			MaxAge:       24 * time.Hour,
			MaxPending:   1000,
		},
	}
}
