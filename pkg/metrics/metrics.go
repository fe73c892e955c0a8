// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveriesTotal tracks webhook deliveries by outcome.
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total webhook deliveries received",
		},
		[]string{"outcome"},
	)

	// WebhookEventsTotal tracks normalized webhook events by type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total normalized webhook events processed",
		},
		[]string{"type", "outcome"},
	)

	// DuplicateMessagesTotal tracks inbound messages suppressed by the
	// idempotency guard.
	DuplicateMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_duplicate_messages_total",
			Help: "Inbound messages dropped as already seen",
		},
	)

	// UnknownTenantChangesTotal tracks changes skipped because no tenant
	// matched the phone number id.
	UnknownTenantChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_unknown_tenant_changes_total",
			Help: "Webhook changes skipped for unknown tenants",
		},
	)

	// StatusTransitionsTotal tracks delivery status transitions.
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_status_transitions_total",
			Help: "Delivery status transitions by result",
		},
		[]string{"status", "result"},
	)

	// MessagesIngestedTotal tracks persisted messages.
	MessagesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_ingested_total",
			Help: "Total messages persisted",
		},
		[]string{"tenant_id", "direction"},
	)

	// ContactsCreatedTotal tracks contacts created by identity resolution.
	ContactsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_created_total",
			Help: "Total contacts created",
		},
		[]string{"tenant_id"},
	)

	// FanoutPublishesTotal tracks JetStream fan-out publishes.
	FanoutPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_publishes_total",
			Help: "JetStream fan-out publish attempts",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordDelivery records the outcome of a webhook delivery.
func RecordDelivery(outcome string) {
	WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordEvent records the outcome of one normalized event.
func RecordEvent(eventType, outcome string) {
	WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordStatusTransition records a status reconciliation result.
func RecordStatusTransition(status, result string) {
	StatusTransitionsTotal.WithLabelValues(status, result).Inc()
}
