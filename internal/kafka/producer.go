package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/mse-market-data/internal/models"
)

// messageWriter is the subset of *kafka.Writer used by Producer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes issuer reference data events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishIssuerUpserted publishes an issuer created or renamed event
func (p *Producer) PublishIssuerUpserted(ctx context.Context, issuer *models.Issuer) error {
	event := models.IssuerEvent{
		EventType:  models.EventIssuerUpserted,
		Issuer:     issuer,
		IssuerCode: issuer.Code,
		Timestamp:  time.Now(),
	}
	return p.publish(ctx, issuer.Code, event)
}

// PublishIssuerDeleted publishes an issuer deleted event
func (p *Producer) PublishIssuerDeleted(ctx context.Context, code string) error {
	event := models.IssuerEvent{
		EventType:  models.EventIssuerDeleted,
		IssuerCode: code,
		Timestamp:  time.Now(),
	}
	return p.publish(ctx, code, event)
}

// publish keys messages by issuer code so events for one issuer stay ordered on a partition
func (p *Producer) publish(ctx context.Context, key string, event models.IssuerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
