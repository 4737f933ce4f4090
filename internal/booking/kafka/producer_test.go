package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ms-reservation/internal/config"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var topics = config.TopicConfig{
	TicketBooked:    "booked",
	TicketCancelled: "cancelled",
	TicketPromoted:  "promoted",
}

func TestPublishRoutesByType(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		models.TicketEventBooked:    "booked",
		models.TicketEventCancelled: "cancelled",
		models.TicketEventPromoted:  "promoted",
	}
	for eventType, topic := range cases {
		producer := new(MockProducer)
		pub := NewPublisher(producer, topics, logger.Discard())

		ev := models.TicketEvent{Type: eventType, TicketID: "t-9", PNR: "ABCDEFGH23", Tier: models.TierConfirmed, OccurredAt: time.Now().UTC()}
		producer.On("Publish", ctx, topic, "t-9", mock.MatchedBy(func(value []byte) bool {
			var decoded models.TicketEvent
			return json.Unmarshal(value, &decoded) == nil && decoded.Type == eventType
		})).Return(nil)

		require.NoError(t, pub.Publish(ctx, ev))
		producer.AssertExpectations(t)
	}
}

func TestPublishUnknownType(t *testing.T) {
	producer := new(MockProducer)
	pub := NewPublisher(producer, topics, logger.Discard())

	err := pub.Publish(context.Background(), models.TicketEvent{Type: "ticket.lost"})
	assert.Error(t, err)
	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
