package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
	log    *logger.Logger
}

// NewConsumer creates a group consumer over the given topics.
func NewConsumer(brokers []string, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, log: log}
}

// Start feeds decoded ticket events to handler until ctx is done. Messages
// that fail to decode are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(topic string, ev models.TicketEvent)) error {
	c.log.Info("KAFKA", "Ticket event consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return fmt.Errorf("read message: %w", err)
		}

		var ev models.TicketEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message on %s: %v", msg.Topic, err))
			continue
		}
		handler(msg.Topic, ev)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
