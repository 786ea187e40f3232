// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/engagecast/internal/eventprocessor"
	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

// Ingestor accepts engagement submissions. *ingest.Service implements it.
type Ingestor interface {
	SubmitLike(ctx context.Context, credential, contentID string) (*models.Receipt, error)
	SubmitUnlike(ctx context.Context, credential, contentID string) (*models.Receipt, error)
	SubmitComment(ctx context.Context, credential, contentID, text string) (*models.Receipt, error)
	SubmitView(ctx context.Context, credential, contentID string) (*models.Receipt, error)
}

// ContentReader serves cold reads. store.AggregateStore implements it.
type ContentReader interface {
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
	ListComments(ctx context.Context, contentID string, limit int) ([]models.Comment, error)
}

// Broadcaster upgrades subscribe requests. *websocket.Hub implements it.
type Broadcaster interface {
	ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, contentID string)
	ClientCount() int
}

// HealthReporter aggregates component health. *eventprocessor.HealthChecker
// implements it.
type HealthReporter interface {
	CheckAll(ctx context.Context) eventprocessor.OverallHealth
}

// DLQReader lists dead-lettered events. *eventprocessor.DLQConsumer
// implements it.
type DLQReader interface {
	List(limit int) []eventprocessor.DLQEntry
	Stats() eventprocessor.DLQStats
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_engagement.go: like, unlike, comment and view submission
//   - handlers_content.go: snapshot and comment reads, WebSocket subscribe
//   - handlers_health.go: liveness and readiness
//   - handlers_dlq.go: dead-letter listing
//   - handlers_reconcile.go: counter drift report and repair
type Handler struct {
	ingest    Ingestor
	reader    ContentReader
	hub       Broadcaster
	health    HealthReporter
	dlq       DLQReader
	store     store.AggregateStore
	baseCtx   context.Context
	startTime time.Time
}

// HandlerDeps are the collaborators of a Handler. Hub, Health, DLQ and Store
// are optional; the corresponding endpoints answer 503 without them.
type HandlerDeps struct {
	Ingest Ingestor
	Reader ContentReader
	Hub    Broadcaster
	Health HealthReporter
	DLQ    DLQReader
	Store  store.AggregateStore

	// BaseContext outlives individual requests. WebSocket connections are
	// bound to it so they end with the server, not with the upgrade request.
	BaseContext context.Context
}

// NewHandler creates a new API handler.
func NewHandler(deps HandlerDeps) *Handler {
	baseCtx := deps.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handler{
		ingest:    deps.Ingest,
		reader:    deps.Reader,
		hub:       deps.Hub,
		health:    deps.Health,
		dlq:       deps.DLQ,
		store:     deps.Store,
		baseCtx:   baseCtx,
		startTime: time.Now(),
	}
}
