package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roomly"

var (
	once sync.Once

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Count of reservation lifecycle transitions by kind.",
		},
		[]string{"transition"},
	)

	confirmConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirm_conflicts_total",
			Help:      "Count of confirmations rejected because of an overlapping confirmed reservation.",
		},
	)

	lockTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_lock_timeouts_total",
			Help:      "Count of operations that gave up waiting for a room lock.",
		},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Count of domain events handed to the broker by driver and result.",
		},
		[]string{"driver", "result"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by method and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Register registers metrics with the default registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationTransitions,
			confirmConflicts,
			lockTimeouts,
			eventsPublished,
			httpRequestDuration,
		)
	})
}

func IncTransition(transition string) {
	reservationTransitions.WithLabelValues(transition).Inc()
}

func IncConfirmConflict() {
	confirmConflicts.Inc()
}

func IncLockTimeout() {
	lockTimeouts.Inc()
}

func IncEventPublished(driver string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(driver, result).Inc()
}

func ObserveHTTPRequest(method string, status int, elapsed time.Duration) {
	httpRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
