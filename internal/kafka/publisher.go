package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/metrics"
	"order-crm/internal/models"

	"github.com/google/uuid"
)

// MessageWriter is the subset of Producer the publisher needs.
type MessageWriter interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// EventPublisher publishes order lifecycle events.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type OrderEventPublisher struct {
	writer MessageWriter
	topics Topics
	logger *logger.Logger
	now    func() time.Time
}

func NewOrderEventPublisher(writer MessageWriter, topics Topics, l *logger.Logger) *OrderEventPublisher {
	return &OrderEventPublisher{writer: writer, topics: topics, logger: l, now: time.Now}
}

// PublishOrderEvent stamps the event with an id and time and writes it,
// keyed by order id so one order's events stay ordered.
func (p *OrderEventPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	topic := p.topics.For(event.Type)
	key := strconv.FormatInt(event.OrderID, 10)
	if err := p.writer.Publish(ctx, topic, key, value); err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	metrics.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
	p.logger.LogKafka("PUBLISH", topic, fmt.Sprintf("event %s for order #%d", event.EventID, event.OrderID))
	return nil
}

// NoopPublisher drops events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	return nil
}
