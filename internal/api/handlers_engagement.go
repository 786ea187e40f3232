// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/engagecast/internal/auth"
)

// Like handles POST /api/v1/content/{contentID}/like.
//
// Responds 202 with a Receipt once the queue accepted the event. Counters
// change asynchronously; subscribe to observe them.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	receipt, err := h.ingest.SubmitLike(r.Context(), auth.BearerToken(r), chi.URLParam(r, "contentID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, receipt, start)
}

// Unlike handles DELETE /api/v1/content/{contentID}/like.
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	receipt, err := h.ingest.SubmitUnlike(r.Context(), auth.BearerToken(r), chi.URLParam(r, "contentID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, receipt, start)
}

// Comment handles POST /api/v1/content/{contentID}/comments with body
// {"text": "..."}.
func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	receipt, err := h.ingest.SubmitComment(r.Context(), auth.BearerToken(r), chi.URLParam(r, "contentID"), req.Text)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, receipt, start)
}

// View handles POST /api/v1/content/{contentID}/views.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	receipt, err := h.ingest.SubmitView(r.Context(), auth.BearerToken(r), chi.URLParam(r, "contentID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, receipt, start)
}
