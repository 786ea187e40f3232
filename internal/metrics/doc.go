// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package metrics declares Engagecast's Prometheus collectors.
//
// All collectors are registered with the default registry through promauto
// and exposed at GET /metrics. Names carry the engagecast_ prefix.
//
// The two series that matter most for correctness checks are
//
//	engagecast_events_processed_total{kind, outcome="applied"|"duplicate"}
//	engagecast_dlq_events_total{reason}
//
// A duplicate outcome is the expected result of redelivery and is kept
// separate from applied mutations so the two can be compared against the
// store's relation counts. Any growth of the DLQ series needs an operator.
package metrics
