package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// KafkaPublisher publishes audit events to a Kafka topic.
// It implements domain.EventPublisher. Publishing is best effort: the
// engines log a failed publish and carry on, the committed operation is
// never undone.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokerURLs []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerURLs...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish serializes the event as JSON and writes it keyed by event type.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
	}
	if err := p.writer.WriteMessages(publishCtx, msg); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	p.logger.Debug("audit event published", zap.String("type", string(event.Type)))
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
