// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package middleware provides infrastructure HTTP middleware for the API
router.

All middleware has the chi signature func(http.Handler) http.Handler:

  - RequestID: accepts or generates X-Request-ID and seeds the logging
    context with request and correlation ids
  - RequestLogger: one structured zerolog line per request
  - PrometheusMetrics: request count, duration and in-flight gauge, labelled
    by chi route pattern

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.PrometheusMetrics)

Response writers are wrapped with chi's WrapResponseWriter, which keeps
http.Hijacker available for the WebSocket subscribe endpoint.
*/
package middleware
