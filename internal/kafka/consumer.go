package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/mse-market-data/internal/ingest"
	"github.com/trogers1052/mse-market-data/internal/models"
)

// Ingester writes one decoded batch
type Ingester interface {
	Ingest(ctx context.Context, kind ingest.Kind, key string, records json.RawMessage) ingest.Result
}

// messageReader is the subset of *kafka.Reader used by Consumer
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads ingestion batches from Kafka. Each message is one all-or-nothing batch.
type Consumer struct {
	reader   messageReader
	topic    string
	ingester Ingester
}

// NewConsumer creates a new Kafka consumer for ingestion batches
func NewConsumer(brokers []string, topic, groupID string, ingester Ingester) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:   reader,
		topic:    topic,
		ingester: ingester,
	}
}

// Start consumes messages until ctx is cancelled, then closes the reader so pending offsets are
// committed. Failed batches are logged and skipped.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Str("topic", c.topic).Msg("Starting Kafka ingestion consumer")

	for {
		if ctx.Err() != nil {
			return c.shutdown()
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.shutdown()
			}
			log.Error().Err(err).Msg("Error reading message")
			continue
		}

		if err := c.processMessage(ctx, msg); err != nil {
			log.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Error processing message")
		}
	}
}

func (c *Consumer) shutdown() error {
	log.Info().Msg("Kafka consumer shutting down")
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}

// processMessage ingests a single Kafka message. The message key is the fallback idempotency key.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Debug().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Msg("Received message")

	var batch models.IngestMessage
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		return fmt.Errorf("failed to unmarshal ingest message: %w", err)
	}

	kind, err := ingest.ParseKind(batch.Kind)
	if err != nil {
		return err
	}

	key := batch.IdempotencyKey
	if key == "" {
		key = string(msg.Key)
	}

	res := c.ingester.Ingest(ctx, kind, key, batch.Records)
	if !res.OK() {
		return fmt.Errorf("failed to ingest %s batch: %w", kind, res.Err)
	}

	if res.Replayed {
		log.Info().Str("kind", string(kind)).Str("idempotency_key", key).Msg("Batch already ingested, skipping")
		return nil
	}
	log.Info().Str("kind", string(kind)).Int("records", res.Count).Msg(res.Message())
	return nil
}
