package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Storage operation metrics
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Resolution metrics: which lookup path answered (token, legacy_id, miss)
	ResolutionTotal *prometheus.CounterVec

	// Moderation metrics
	ModerationDecisionTotal *prometheus.CounterVec

	// Event publishing metrics
	EventPublishTotal *prometheus.CounterVec
}

// Global metrics instance; handlers and tests may both construct a Metrics,
// so registration tolerates repeats.
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates (or returns) the Metrics instance.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artkey_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		StorageOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_storage_operations_total",
			Help: "Total number of record store operations",
		}, []string{"operation", "status"}),

		StorageOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "artkey_storage_operation_duration_seconds",
			Help:    "Record store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		ResolutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_resolution_total",
			Help: "Identifier resolutions by answering lookup path",
		}, []string{"path"}),

		ModerationDecisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_moderation_decisions_total",
			Help: "Approval-state transitions by kind and resulting state",
		}, []string{"kind", "state"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artkey_event_publish_total",
			Help: "Total number of event publish operations",
		}, []string{"event_type", "status"}),
	}

	registerMetrics(m)
	globalMetrics = m
	return m
}

func registerMetrics(m *Metrics) {
	registerOrGet(m.HTTPRequestTotal)
	registerOrGet(m.HTTPRequestDuration)
	registerOrGet(m.StorageOperationTotal)
	registerOrGet(m.StorageOperationDuration)
	registerOrGet(m.ResolutionTotal)
	registerOrGet(m.ModerationDecisionTotal)
	registerOrGet(m.EventPublishTotal)
}

// registerOrGet tries to register a metric, returning the existing collector
// when it is already registered.
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
