// Package metrics defines the service's Prometheus collectors.
//
// Every recording method is safe on a nil *Metrics and never panics into the
// caller; tests and tools that do not care about metrics may pass nil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	namespace = "matchi_api"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database pool metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBConnectionsMax   prometheus.Gauge

	// Attendance metrics
	AttendanceTransitionsTotal      *prometheus.CounterVec
	WaitlistPromotionsTotal         prometheus.Counter
	CapacityRaceFallbacksTotal      prometheus.Counter
	PersistenceConflictRetriesTotal *prometheus.CounterVec

	// Event lifecycle metrics
	EventsCreatedTotal   prometheus.Counter
	EventsCancelledTotal prometheus.Counter
	EventsCompletedTotal prometheus.Counter

	// Info hub metrics
	InfoPostsCreatedTotal *prometheus.CounterVec

	// Idempotency metrics
	IdempotentReplaysTotal *prometheus.CounterVec

	logger *zap.Logger
}

// New creates and registers all metrics with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, nil)
}

// NewWithRegistry creates and registers all metrics with a custom registry
func NewWithRegistry(registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	factory := promauto.With(registerer)

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint"},
		),

		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Current number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Current number of in-use database connections",
			},
		),
		DBConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Current number of idle database connections",
			},
		),
		DBConnectionsMax: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_max",
				Help:      "Maximum number of open database connections configured",
			},
		),

		AttendanceTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attendance_transitions_total",
				Help:      "Attendance writes by operation and resulting status",
			},
			[]string{"operation", "status"},
		),
		WaitlistPromotionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "waitlist_promotions_total",
				Help:      "Total number of waitlisted attendees promoted to confirmed",
			},
		),
		CapacityRaceFallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capacity_race_fallbacks_total",
				Help:      "Confirmed joins rejected at write time and stored as waitlist",
			},
		),
		PersistenceConflictRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_conflict_retries_total",
				Help:      "Attendance units of work retried after a store conflict",
			},
			[]string{"operation", "result"},
		),

		EventsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_created_total",
				Help:      "Total number of events created",
			},
		),
		EventsCancelledTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_cancelled_total",
				Help:      "Total number of events cancelled by their host",
			},
		),
		EventsCompletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_completed_total",
				Help:      "Total number of events marked completed by the sweeper",
			},
		),

		InfoPostsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "info_posts_created_total",
				Help:      "Total number of info hub posts created",
			},
			[]string{"category"},
		),

		IdempotentReplaysTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotent_replays_total",
				Help:      "Mutating requests answered from the idempotency store",
			},
			[]string{"route"},
		),

		logger: logger,
	}
}

// safeExecute wraps metric operations with panic recovery
func (m *Metrics) safeExecute(operation string, fn func()) {
	if m == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in metrics operation",
				zap.String("operation", operation),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
