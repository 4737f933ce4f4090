package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-reservation/internal/booking"
	"ms-reservation/internal/config"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Publisher routes ticket events to their topics, keyed by ticket id so every
// event of one ticket lands on the same partition.
type Publisher struct {
	Producer MessagePublisher
	Topics   config.TopicConfig
	Logger   *logger.Logger
}

func NewPublisher(producer MessagePublisher, topics config.TopicConfig, log *logger.Logger) *Publisher {
	return &Publisher{Producer: producer, Topics: topics, Logger: log}
}

var _ booking.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, ev models.TicketEvent) error {
	topic, err := p.topicFor(ev.Type)
	if err != nil {
		return err
	}

	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	if err := p.Producer.Publish(ctx, topic, ev.TicketID, msgBytes); err != nil {
		return err
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s %s tier %s", ev.Type, ev.PNR, ev.Tier))
	return nil
}

func (p *Publisher) topicFor(eventType string) (string, error) {
	switch eventType {
	case models.TicketEventBooked:
		return p.Topics.TicketBooked, nil
	case models.TicketEventCancelled:
		return p.Topics.TicketCancelled, nil
	case models.TicketEventPromoted:
		return p.Topics.TicketPromoted, nil
	}
	return "", fmt.Errorf("unknown ticket event type %q", eventType)
}
