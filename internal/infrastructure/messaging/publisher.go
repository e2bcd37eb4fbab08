package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fanders/microfinance/internal/domain/port"
	"github.com/fanders/microfinance/pkg/events"
	pkgkafka "github.com/fanders/microfinance/pkg/kafka"
)

var _ port.EventPublisher = (*KafkaEventPublisher)(nil)

// Producer is the subset of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// KafkaEventPublisher writes outbox entries to Kafka, keyed by aggregate so
// the events of one loan or one day stay ordered within a partition.
type KafkaEventPublisher struct {
	producer Producer
	logger   *slog.Logger
}

// NewKafkaEventPublisher creates a publisher over producer.
func NewKafkaEventPublisher(producer Producer, logger *slog.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, logger: logger}
}

// Publish sends entries to topic as one batch.
func (p *KafkaEventPublisher) Publish(ctx context.Context, topic string, entries ...events.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	messages := make([]pkgkafka.Message, 0, len(entries))
	for _, e := range entries {
		p.logger.DebugContext(ctx, "publishing domain event",
			"event_type", e.EventType,
			"aggregate_id", e.AggregateID,
			"topic", topic,
			"payload_size", len(e.Payload),
		)
		messages = append(messages, pkgkafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: map[string]string{
				HeaderEventType:     e.EventType,
				HeaderEventID:       e.ID,
				HeaderAggregateType: e.AggregateType,
			},
		})
	}

	if err := p.producer.Publish(ctx, topic, messages...); err != nil {
		return fmt.Errorf("publish %d events to %s: %w", len(messages), topic, err)
	}
	return nil
}

// Message headers carried with every event.
const (
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
	HeaderAggregateType = "aggregate_type"
)
