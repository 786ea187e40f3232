// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/store"
)

// Drift handles GET /api/v1/admin/drift?content=a&content=b. It recounts
// the named content items, or every known item when none is named, and
// reports counters that disagree with their relation rows without changing
// them.
func (h *Handler) Drift(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, true)
}

// Reconcile handles POST /api/v1/admin/reconcile?content=a. It rewrites
// drifted counters and returns what it corrected. Run it while the processor
// is quiescent.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, false)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request, dryRun bool) {
	start := time.Now()

	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "aggregate store not available", nil)
		return
	}

	q := ReconcileQuery{ContentIDs: r.URL.Query()["content"]}
	if err := validateRequest(&q); err != nil {
		respondServiceError(w, r, err)
		return
	}

	report, err := store.Reconcile(r.Context(), h.store, store.ReconcileOptions{
		ContentIDs: q.ContentIDs,
		DryRun:     dryRun,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if caller, ok := CallerFromContext(r.Context()); ok && !dryRun {
		logging.Ctx(r.Context()).Info().
			Str("user_id", caller.UserID).
			Int("checked", report.Checked).
			Int("corrections", len(report.Corrections)).
			Msg("Counters reconciled via admin API")
	}
	respondSuccess(w, http.StatusOK, report, start)
}
