// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/engagecast/internal/auth"
	"github.com/tomtom215/engagecast/internal/middleware"
)

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	verifier      auth.Verifier
	authorizer    Authorizer
	metrics       http.Handler
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMetricsHandler replaces the /metrics handler (promhttp.Handler by
// default).
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(r *Router) { r.metrics = h }
}

// NewRouter creates a router. verifier and authorizer guard /api/v1/admin.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, verifier auth.Verifier, authorizer Authorizer, opts ...RouterOption) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	r := &Router{
		handler:       handler,
		chiMiddleware: chiMW,
		verifier:      verifier,
		authorizer:    authorizer,
		metrics:       promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed", nil)
	})

	// ========================
	// Health and Metrics
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/health/live", router.handler.HealthLive)
		r.Get("/health/ready", router.handler.HealthReady)
		r.Handle("/metrics", router.metrics)
	})

	// ========================
	// Engagement API
	// ========================
	r.Route("/api/v1/content/{contentID}", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		// The upgrade must not pass through the default limiter or the
		// security headers: the connection is hijacked.
		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/subscribe", router.handler.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders())

			r.Post("/like", router.handler.Like)
			r.Delete("/like", router.handler.Unlike)
			r.Post("/comments", router.handler.Comment)
			r.Post("/views", router.handler.View)

			r.Get("/", router.handler.Content)
			r.With(chimiddleware.Compress(5, "application/json")).Get("/comments", router.handler.Comments)
		})
	})

	// ========================
	// Admin
	// ========================
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAdmin())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(RequireAdmin(router.verifier, router.authorizer))

		r.Get("/dlq", router.handler.DLQEntries)
		r.Get("/drift", router.handler.Drift)
		r.Post("/reconcile", router.handler.Reconcile)
	})

	return r
}
