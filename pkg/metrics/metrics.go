package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plume_connections_total",
			Help: "Total number of connections established",
		},
	)

	ConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plume_connections_current",
			Help: "Current number of active connections",
		},
	)

	AuthenticatedConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plume_authenticated_connections_current",
			Help: "Current number of authenticated connections",
		},
	)

	AuthenticationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plume_authentication_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"kind", "result"},
	)
)

// Protocol metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plume_requests_total",
			Help: "Total number of protocol requests handled",
		},
		[]string{"tag", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plume_request_duration_seconds",
			Help:    "Duration of request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tag"},
	)
)

// Delivery metrics
var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plume_deliveries_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"outcome"},
	)
)
