// Package metrics defines Prometheus metrics for the opsledger core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_mutations_total",
			Help: "Committed mutations by action",
		},
		[]string{"action"},
	)

	MutationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opsledger_mutation_failures_total",
			Help: "Mutations rolled back before commit",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsledger_sync_queue_depth",
			Help: "Pending sync queue items across open tenants",
		},
	)

	FailedOperations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsledger_failed_operations",
			Help: "Dead-lettered operations awaiting manual intervention",
		},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsledger_deliveries_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	ChainVerifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opsledger_chain_verify_failures_total",
			Help: "Chain verifications that found at least one broken link",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opsledger_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		MutationsTotal, MutationFailures,
		QueueDepth, FailedOperations, DeliveriesTotal,
		ChainVerifyFailures, WSConnections,
	)
}
