package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"order-crm/internal/logger"
	"order-crm/internal/models"

	"github.com/segmentio/kafka-go"
)

// Topics derives topic names from a deployment prefix.
type Topics struct {
	Prefix string
}

// For returns the topic an event type is published to.
func (t Topics) For(eventType string) string {
	if t.Prefix == "" {
		return eventType
	}
	return t.Prefix + "." + eventType
}

// All lists every topic this service publishes to.
func (t Topics) All() []string {
	return []string{
		t.For(models.EventOrderCreated),
		t.For(models.EventOrderUpdated),
		t.For(models.EventOrderDeleted),
		t.For(models.EventOrdersRenumbered),
	}
}

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("CREATE", topic, "topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
		default:
			// keep going so one bad topic does not block the rest
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		}
	}
	return nil
}
