// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package api provides the HTTP surface of the engagement pipeline using the
chi router.

Routes:

	POST   /api/v1/content/{contentID}/like       submit LIKE, 202 + receipt
	DELETE /api/v1/content/{contentID}/like       submit UNLIKE, 202 + receipt
	POST   /api/v1/content/{contentID}/comments   submit COMMENT {"text": "..."}
	POST   /api/v1/content/{contentID}/views      submit VIEW
	GET    /api/v1/content/{contentID}            current counters (cold read)
	GET    /api/v1/content/{contentID}/comments   newest first, ?limit=N (max 100)
	GET    /api/v1/content/{contentID}/subscribe  WebSocket snapshot stream
	GET    /api/v1/admin/dlq                      recent dead letters (admin)
	GET    /health/live, /health/ready, /metrics

Submissions carry the caller credential as "Authorization: Bearer <token>".
A 202 means the delivery queue durably accepted the event; the counters
change asynchronously.

Every JSON response uses models.APIResponse:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
	{"status": "error", "error": {"code": "...", "message": "...", "details": {...}}}

Error mapping:

	AuthError           401 AUTHENTICATION_ERROR
	ValidationError     400 VALIDATION_ERROR
	ServiceUnavailable  503 SERVICE_UNAVAILABLE (Retry-After in seconds)
	rate limited        429 RATE_LIMIT_EXCEEDED
	anything else       500 INTERNAL_ERROR

Middleware (outermost first): RealIP, RequestID, RequestLogger, Recoverer,
CORS, then per group httprate limiting, security headers and Prometheus
timing.
*/
package api
