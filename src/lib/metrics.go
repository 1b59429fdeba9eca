package lib

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "menusync"

var (
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WebhookCounter counts deliveries by platform and outcome
	// (accepted, duplicate, unauthorized, malformed, quota, failed).
	WebhookCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	PosSyncCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pos_sync_total",
			Help:      "POS push attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	PosSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pos_sync_duration_seconds",
			Help:      "Latency of POS push calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	QueueDepthGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_tasks",
			Help:      "Queued tasks by status",
		},
		[]string{"status"},
	)

	FailedOrdersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "orders_failed",
		Help:      "Orders currently awaiting a successful POS sync",
	})
)
