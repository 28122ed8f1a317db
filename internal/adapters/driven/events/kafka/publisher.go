// Package kafka publishes ingestion events to a Kafka topic as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// Ensure Publisher implements the interface.
var _ driven.EventPublisher = (*Publisher)(nil)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes one message per ingestion, keyed by document ID so that
// events for the same document land on the same partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher creates a synchronous publisher for the topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Publisher{writer: w, topic: topic}
}

// PublishIngest serialises the event and writes it.
func (p *Publisher) PublishIngest(ctx context.Context, event domain.IngestEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	key := event.DocumentID
	if key == "" {
		key = event.Name
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(event.Outcome)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing to kafka topic %s: %w", p.topic, err)
	}

	logger.Debug("Published ingest event for %q (%d bytes)", event.Name, len(value))
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
