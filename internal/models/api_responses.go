// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package models

import (
	"time"
)

// APIResponse is the envelope of every JSON HTTP response.
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//	{"status": "error", "error": {"code": "VALIDATION_ERROR", "message": "..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the error body of a failed request.
//
// Codes:
//   - AUTHENTICATION_ERROR (401)
//   - VALIDATION_ERROR (400)
//   - SERVICE_UNAVAILABLE (503, with Retry-After)
//   - NOT_FOUND (404)
//   - RATE_LIMIT_EXCEEDED (429)
//   - INTERNAL_ERROR (500)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Receipt acknowledges that an engagement event was durably accepted by the
// delivery queue. It does not mean the counters have been updated; Snapshot,
// when present, is the state before this event was applied and is
// informational only.
type Receipt struct {
	EventID    string    `json:"eventId"`
	Kind       EventKind `json:"kind"`
	ContentID  string    `json:"contentId"`
	AcceptedAt time.Time `json:"acceptedAt"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
}

// CommentsResponse is the body of the comment listing endpoint.
type CommentsResponse struct {
	ContentID string    `json:"contentId"`
	Comments  []Comment `json:"comments"`
	Limit     int       `json:"limit"`
}
