package kafka_middleware

import (
	"context"
	"roomly/pkg/kafka"
	"roomly/pkg/metrics"
)

const driverName = "kafka"

// MetricsProducerMiddleware counts publish attempts by outcome.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		err := next(ctx, msg)
		metrics.IncEventPublished(driverName, err)
		return err
	}
}
