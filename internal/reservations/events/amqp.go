package events

import (
	"context"
	"encoding/json"
	"fmt"
	"roomly/pkg/metrics"
	"roomly/pkg/middleware"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    Channel
	queue string
}

// NewAMQPPublisher dials the broker and declares a durable queue named
// after the events topic. Events are published to the default exchange.
func NewAMQPPublisher(url, queue string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}

	return &amqpPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// NewAMQPPublisherWithChannel publishes on an already opened channel.
func NewAMQPPublisherWithChannel(ch Channel, queue string) Publisher {
	return &amqpPublisher{ch: ch, queue: queue}
}

func (p *amqpPublisher) Publish(ctx context.Context, event ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Type:          event.EventType,
		CorrelationId: middleware.RequestIDFromContext(ctx),
		AppId:         Source,
		Body:          body,
	}

	// channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	metrics.IncEventPublished(DriverAMQP, err)
	if err != nil {
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if connErr := p.conn.Close(); err == nil {
			err = connErr
		}
	}
	return err
}
