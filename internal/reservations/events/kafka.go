package events

import (
	"context"
	"fmt"
	"roomly/pkg/kafka"
	"roomly/pkg/middleware"
	"strconv"
)

// MessageProducer is satisfied by *kafka.Producer.
type MessageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer MessageProducer
}

func NewKafkaPublisher(producer MessageProducer) Publisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event ReservationEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(strconv.FormatInt(event.ReservationID, 10)).
		WithValue(event).
		WithEventType(event.EventType).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return err
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for reservation %d: %w", event.EventType, event.ReservationID, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
