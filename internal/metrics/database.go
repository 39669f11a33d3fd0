package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
)

// Database metrics
var (
	// DBConnectionsOpen is the total number of open connections to the database
	DBConnectionsOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Total number of open database connections",
		},
	)

	// DBConnectionsInUse is the number of database connections currently checked out
	DBConnectionsInUse = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently checked out of the pool",
		},
	)

	// DBConnectionsMaxOpen is the maximum number of open database connections
	DBConnectionsMaxOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_max_open",
			Help:      "Maximum number of open database connections allowed",
		},
	)

	// DBPoolCheckoutFailures counts failed connection checkouts by reason
	DBPoolCheckoutFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_pool_checkout_failures_total",
			Help:      "Total number of failed connection checkouts",
		},
		[]string{"reason"},
	)

	// DBQueryDuration records database operation latency
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database operation duration in seconds",
			// Buckets: 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// DBErrors counts database errors by type
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

// PoolMonitor returns a driver pool monitor that keeps the connection gauges
// current. maxPoolSize is reported as-is.
func PoolMonitor(maxPoolSize uint64) *event.PoolMonitor {
	DBConnectionsMaxOpen.Set(float64(maxPoolSize))
	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			if evt == nil {
				return
			}
			observePoolEvent(evt)
		},
	}
}

func observePoolEvent(evt *event.PoolEvent) {
	switch evt.Type {
	case event.ConnectionCreated:
		DBConnectionsOpen.Inc()
	case event.ConnectionClosed:
		DBConnectionsOpen.Dec()
	case event.GetSucceeded:
		DBConnectionsInUse.Inc()
	case event.ConnectionReturned:
		DBConnectionsInUse.Dec()
	case event.GetFailed:
		reason := evt.Reason
		if reason == "" {
			reason = "unknown"
		}
		DBPoolCheckoutFailures.WithLabelValues(reason).Inc()
	case event.PoolCleared:
		DBConnectionsInUse.Set(0)
	}
}

// RecordQuery records metrics for a database operation
// Call this function with defer to capture duration:
//
//	start := time.Now()
//	defer func() { metrics.RecordQuery("find_events", start, err) }()
func RecordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	DBQueryDuration.WithLabelValues(operation).Observe(duration)

	if err == nil || errors.Is(err, mongo.ErrNoDocuments) {
		return
	}

	errorType := "query_error"
	switch {
	case errors.Is(err, context.Canceled):
		errorType = "canceled"
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		errorType = "timeout"
	case mongo.IsDuplicateKeyError(err):
		errorType = "duplicate_key"
	case mongo.IsNetworkError(err):
		errorType = "network"
	}
	DBErrors.WithLabelValues(operation, errorType).Inc()
}
