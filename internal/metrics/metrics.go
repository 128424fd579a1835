package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalate_core_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escalate_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Delivery metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalate_core_notifications_sent_total",
			Help: "Total number of notifications attempted per channel",
		},
		[]string{"channel_type", "result"}, // sent/failed/rate_limited/disabled
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escalate_core_delivery_duration_seconds",
			Help:    "Per-channel delivery duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 30.0},
		},
		[]string{"channel_type"},
	)

	// Escalation metrics
	ActiveEscalations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escalate_core_escalations_active",
			Help: "Number of in-flight escalation contexts",
		},
	)

	EscalationsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalate_core_escalations_executed_total",
			Help: "Total number of escalation passes executed",
		},
		[]string{"severity", "outcome"}, // delivered/terminated/cancelled/deferred
	)

	RecoveryScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalate_core_recovery_scans_total",
			Help: "Total number of overdue-alert recovery scans",
		},
		[]string{"result"}, // ok/error
	)

	// Valkey cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalate_core_cache_requests_total",
			Help: "Total number of cache requests",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/ok/error
	)
)
