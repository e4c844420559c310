package events

import (
	"fmt"
	"roomly/pkg/config"
	"roomly/pkg/kafka"
	kafka_middleware "roomly/pkg/kafka/middleware"
)

const (
	DriverKafka = config.EventsKafka
	DriverAMQP  = config.EventsAMQP
)

// New builds the publisher selected by EVENTS_DRIVER.
func New(cfg *config.Config) (Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		producer, err := kafka.NewProducer(
			kafka.LoadProducerConfig(cfg.KafkaBrokers),
			cfg.EventsTopic,
			cfg.EventsDLQTopic,
			cfg.Log,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
		return NewKafkaPublisher(producer), nil

	case config.EventsAMQP:
		return NewAMQPPublisher(cfg.AMQPURL, cfg.EventsTopic)

	case config.EventsNone, "":
		return NewNoopPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.EventsDriver)
	}
}
