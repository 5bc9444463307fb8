// Package metrics holds the Prometheus collectors of the dashboard server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// HTTPInFlight is the number of requests being served
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// SyncRuns counts device sync runs by mode (all, unread) and outcome
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_sync_runs_total",
			Help: "Device sync runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// SyncRecords counts records seen by sync runs by mode and result
	// (inserted, skipped, error)
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_sync_records_total",
			Help: "Records processed by device sync runs",
		},
		[]string{"mode", "result"},
	)

	// WebhookItems counts webhook deliveries by result (inserted, skipped,
	// duplicate, error)
	WebhookItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_webhook_items_total",
			Help: "Webhook items processed by result",
		},
		[]string{"result"},
	)

	// SendAttempts counts outbound sends by kind (quick, bulk) and status
	SendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_send_attempts_total",
			Help: "Outbound SMS send attempts",
		},
		[]string{"kind", "status"},
	)

	// GatewayLatency observes device API call latency by operation
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sms_gateway_request_duration_seconds",
			Help:    "Latency of calls to the gateway device",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"operation"},
	)

	// LiveClients is the number of connected live-event clients
	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sms_live_clients",
			Help: "Connected live event clients",
		},
	)

	// LivePending is the number of callbacks waiting for a result
	LivePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sms_live_pending_callbacks",
			Help: "Live requests waiting for their result",
		},
	)
)
