// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_ingest_requests_total",
			Help: "Engagement submissions by kind and result (accepted, auth_error, validation_error, unavailable, error)",
		},
		[]string{"kind", "result"},
	)

	IngestPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engagecast_ingest_publish_duration_seconds",
			Help:    "Time to get a durable publish acknowledgment from the delivery queue",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Event processing
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_events_processed_total",
			Help: "Engagement events processed by kind and outcome (applied, duplicate)",
		},
		[]string{"kind", "outcome"},
	)

	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagecast_event_processing_duration_seconds",
			Help:    "Duration of one event processing attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	EventProcessingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_event_processing_errors_total",
			Help: "Failed processing attempts by category (retryable, permanent)",
		},
		[]string{"category"},
	)

	DLQEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_dlq_events_total",
			Help: "Events routed to the dead-letter topic by reason",
		},
		[]string{"reason"},
	)

	// Store
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagecast_store_operation_duration_seconds",
			Help:    "Aggregate store operation duration by backend and operation",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_store_operation_errors_total",
			Help: "Aggregate store operation errors by backend and operation",
		},
		[]string{"backend", "operation"},
	)

	StoreConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagecast_store_conflict_retries_total",
			Help: "Transaction conflicts retried by the embedded store",
		},
	)

	ReconcileCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_reconcile_corrections_total",
			Help: "Counters rewritten by reconciliation, by field",
		},
		[]string{"field"},
	)

	// Broadcast
	BroadcastPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_broadcast_published_total",
			Help: "Snapshots handed to the broadcast service by result (ok, error, forward_ok, forward_error)",
		},
		[]string{"result"},
	)

	BroadcastDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagecast_broadcast_delivered_total",
			Help: "Snapshot messages queued to individual WebSocket clients",
		},
	)

	BroadcastDroppedClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagecast_broadcast_dropped_clients_total",
			Help: "WebSocket clients disconnected because their send buffer was full",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagecast_websocket_connections",
			Help: "Open WebSocket connections",
		},
	)

	WSSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagecast_websocket_subscriptions",
			Help: "Active (client, content) subscriptions",
		},
	)

	// Queue publisher
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engagecast_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Authorization
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_authz_decisions_total",
			Help: "Admin authorization decisions by result (allowed, denied) and source (cache, enforcer)",
		},
		[]string{"result", "source"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagecast_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagecast_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagecast_http_active_requests",
			Help: "In-flight HTTP requests",
		},
	)
)

// RecordIngest counts one submission.
func RecordIngest(kind, result string) {
	IngestRequestsTotal.WithLabelValues(kind, result).Inc()
}

// RecordPublish observes a queue publish round trip.
func RecordPublish(duration time.Duration) {
	IngestPublishDuration.Observe(duration.Seconds())
}

// RecordEventProcessed counts an event outcome and its processing time.
func RecordEventProcessed(kind, outcome string, duration time.Duration) {
	EventsProcessedTotal.WithLabelValues(kind, outcome).Inc()
	EventProcessingDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordProcessingError counts a failed processing attempt.
func RecordProcessingError(category string) {
	EventProcessingErrors.WithLabelValues(category).Inc()
}

// RecordDLQEvent counts a dead-lettered event.
func RecordDLQEvent(reason string) {
	DLQEventsTotal.WithLabelValues(reason).Inc()
}

// RecordStoreOperation observes a store call.
func RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordBroadcast counts a snapshot publish attempt.
func RecordBroadcast(err error) {
	if err != nil {
		BroadcastPublishedTotal.WithLabelValues("error").Inc()
		return
	}
	BroadcastPublishedTotal.WithLabelValues("ok").Inc()
}

// RecordAuthzDecision counts one enforcement decision.
func RecordAuthzDecision(allowed, cached bool) {
	result, source := "denied", "enforcer"
	if allowed {
		result = "allowed"
	}
	if cached {
		source = "cache"
	}
	AuthzDecisionsTotal.WithLabelValues(result, source).Inc()
}

// RecordAPIRequest counts an HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
