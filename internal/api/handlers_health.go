// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/engagecast/internal/eventprocessor"
	"github.com/tomtom215/engagecast/internal/models"
)

// HealthLive handles Kubernetes-style liveness checks.
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}

// HealthReady handles Kubernetes-style readiness checks. It returns 503 when
// a required component (store, queue publisher, router, enqueuer) is
// unhealthy and 200 otherwise; a failing hub only degrades. The body always
// carries the component breakdown.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "pipeline not started", nil)
		return
	}

	overall := h.health.CheckAll(r.Context())

	data := map[string]interface{}{
		"ready":      overall.Status != eventprocessor.HealthStatusUnhealthy,
		"status":     overall.Status,
		"components": overall.Components,
	}
	if h.hub != nil {
		data["websocket_clients"] = h.hub.ClientCount()
	}

	status := http.StatusOK
	respStatus := "success"
	if overall.Status == eventprocessor.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
		respStatus = "error"
	}

	respondJSON(w, status, &models.APIResponse{
		Status: respStatus,
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: overall.Timestamp.UTC(),
		},
	})
}
