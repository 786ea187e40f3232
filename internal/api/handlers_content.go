// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

// Content handles GET /api/v1/content/{contentID}. It is a cold read of the
// aggregate store; an item that was never touched has zero counters.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := ContentRequest{ContentID: chi.URLParam(r, "contentID")}
	if err := validateRequest(&req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	item, err := h.reader.GetContent(r.Context(), req.ContentID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, item.Snapshot(time.Now().UTC()), start)
}

// Comments handles GET /api/v1/content/{contentID}/comments?limit=N and
// returns comments newest first. limit defaults to and is capped at
// store.MaxCommentLimit.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	req := CommentsQuery{ContentID: chi.URLParam(r, "contentID"), Limit: limit}
	if err := validateRequest(&req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	limit = store.ClampCommentLimit(req.Limit)
	comments, err := h.reader.ListComments(r.Context(), req.ContentID, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	respondSuccess(w, http.StatusOK, models.CommentsResponse{
		ContentID: req.ContentID,
		Comments:  comments,
		Limit:     limit,
	}, start)
}

// Subscribe handles GET /api/v1/content/{contentID}/subscribe. The request
// is upgraded to a WebSocket that first receives the current snapshot and
// then every update for the item. Further items can be joined over the
// socket's control protocol.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "broadcast is not enabled", nil)
		return
	}

	req := ContentRequest{ContentID: chi.URLParam(r, "contentID")}
	if err := validateRequest(&req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.hub.ServeWS(h.baseCtx, w, r, req.ContentID)
}
