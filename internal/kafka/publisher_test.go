package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "crm"}
	assert.Equal(t, "crm.order.created", topics.For(models.EventOrderCreated))
	assert.Len(t, topics.All(), 4)
	assert.Equal(t, "order.deleted", Topics{}.For(models.EventOrderDeleted))
}

func TestPublishOrderEvent_StampsAndKeysByOrder(t *testing.T) {
	writer := new(MockWriter)
	p := NewOrderEventPublisher(writer, Topics{Prefix: "crm"}, logger.Nop())
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	var captured []byte
	writer.On("Publish", "crm.order.created", "17", mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).([]byte) }).
		Return(nil)

	err := p.PublishOrderEvent(context.Background(), models.OrderEvent{
		Type:    models.EventOrderCreated,
		OrderID: 17,
		ActorID: 3,
		Payload: map[string]any{"shop_name": "S1"},
	})
	require.NoError(t, err)
	writer.AssertExpectations(t)

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(captured, &decoded))
	_, parseErr := uuid.Parse(decoded.EventID)
	assert.NoError(t, parseErr)
	assert.True(t, decoded.OccurredAt.Equal(fixed))
	assert.Equal(t, int64(3), decoded.ActorID)
}

func TestPublishOrderEvent_WrapsWriterError(t *testing.T) {
	writer := new(MockWriter)
	writer.On("Publish", "crm.order.deleted", "5", mock.Anything).Return(errors.New("broker down"))

	p := NewOrderEventPublisher(writer, Topics{Prefix: "crm"}, logger.Nop())
	err := p.PublishOrderEvent(context.Background(), models.OrderEvent{Type: models.EventOrderDeleted, OrderID: 5})

	assert.ErrorContains(t, err, "broker down")
}

func TestNoopPublisher(t *testing.T) {
	var p EventPublisher = NoopPublisher{}
	assert.NoError(t, p.PublishOrderEvent(context.Background(), models.OrderEvent{Type: models.EventOrderCreated}))
}
