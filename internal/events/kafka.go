package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter est la partie de kafka.Writer utilisée (remplaçable en test)
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher écrit les événements sur un topic, partitionnés par job id
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher crée un publisher synchrone pour le topic donné
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaPublisher{
		writer: w,
		logger: logger.Named("events.kafka").With(zap.String("topic", topic)),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.JobID),
		Value: value,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("KafkaPublisher.Publish: failed to publish event",
			zap.String("job_id", event.JobID), zap.String("type", event.Type), zap.Error(err))
		return fmt.Errorf("failed to publish event to kafka: %w", err)
	}

	p.logger.Debug("KafkaPublisher.Publish: event published",
		zap.String("job_id", event.JobID), zap.String("type", event.Type))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
