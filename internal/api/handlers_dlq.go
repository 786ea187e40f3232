// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/engagecast/internal/eventprocessor"
)

// defaultDLQLimit is the page size of GET /admin/dlq without ?limit.
const defaultDLQLimit = 50

// DLQEntriesResponse is the response for listing DLQ entries.
type DLQEntriesResponse struct {
	Entries []eventprocessor.DLQEntry `json:"entries"`
	Stats   eventprocessor.DLQStats   `json:"stats"`
	Limit   int                       `json:"limit"`
}

// DLQEntries handles GET /api/v1/admin/dlq?limit=N and returns the most
// recent dead-lettered events seen by this node, newest first.
func (h *Handler) DLQEntries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.dlq == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "dead-letter consumer not running", nil)
		return
	}

	limit, err := getIntParam(r, "limit", defaultDLQLimit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	q := DLQQuery{Limit: limit}
	if err := validateRequest(&q); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultDLQLimit
	}

	entries := h.dlq.List(q.Limit)
	if entries == nil {
		entries = []eventprocessor.DLQEntry{}
	}
	respondSuccess(w, http.StatusOK, DLQEntriesResponse{
		Entries: entries,
		Stats:   h.dlq.Stats(),
		Limit:   q.Limit,
	}, start)
}
