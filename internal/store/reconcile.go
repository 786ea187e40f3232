// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
)

// Correction is one counter that disagreed with its relation rows.
type Correction struct {
	ContentID string              `json:"contentId"`
	Field     models.CounterField `json:"field"`
	Stored    int64               `json:"stored"`
	Actual    int64               `json:"actual"`
}

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	Checked     int          `json:"checked"`
	Corrections []Correction `json:"corrections"`
	DryRun      bool         `json:"dryRun"`
}

// ReconcileOptions selects what Reconcile examines.
type ReconcileOptions struct {
	// ContentIDs limits the run. Empty means every known content id.
	ContentIDs []string
	// DryRun reports corrections without writing them.
	DryRun bool
}

// Reconcile recounts relation and comment rows and rewrites counters that
// disagree. It is meant for backfill and cold repair while the processor is
// quiescent; a concurrent mutation between the count and the write can be
// overwritten by it.
func Reconcile(ctx context.Context, s AggregateStore, opts ReconcileOptions) (*ReconcileReport, error) {
	ids := opts.ContentIDs
	if len(ids) == 0 {
		var err error
		if ids, err = s.ListContentIDs(ctx); err != nil {
			return nil, fmt.Errorf("list content ids: %w", err)
		}
	}

	report := &ReconcileReport{DryRun: opts.DryRun, Corrections: []Correction{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fixes, err := reconcileOne(ctx, s, id, opts.DryRun)
		if err != nil {
			return report, fmt.Errorf("reconcile %s: %w", id, err)
		}
		report.Checked++
		report.Corrections = append(report.Corrections, fixes...)
	}

	logging.Info().
		Int("checked", report.Checked).
		Int("corrections", len(report.Corrections)).
		Bool("dry_run", opts.DryRun).
		Msg("Counter reconciliation finished")

	return report, nil
}

func reconcileOne(ctx context.Context, s AggregateStore, contentID string, dryRun bool) ([]Correction, error) {
	item, err := s.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	likes, err := s.ListLikes(ctx, contentID)
	if err != nil {
		return nil, err
	}
	views, err := s.ListViews(ctx, contentID)
	if err != nil {
		return nil, err
	}
	comments, err := s.CountComments(ctx, contentID)
	if err != nil {
		return nil, err
	}

	actual := map[models.CounterField]int64{
		models.FieldLikeCount:    int64(len(likes)),
		models.FieldCommentCount: comments,
		models.FieldViewCount:    int64(len(views)),
	}

	var fixes []Correction
	for _, field := range []models.CounterField{models.FieldLikeCount, models.FieldCommentCount, models.FieldViewCount} {
		if stored := item.Counter(field); stored != actual[field] {
			fixes = append(fixes, Correction{ContentID: contentID, Field: field, Stored: stored, Actual: actual[field]})
		}
	}
	if len(fixes) == 0 || dryRun {
		return fixes, nil
	}

	if err := s.SetCounters(ctx, contentID,
		actual[models.FieldLikeCount], actual[models.FieldCommentCount], actual[models.FieldViewCount]); err != nil {
		return nil, err
	}
	for _, f := range fixes {
		metrics.ReconcileCorrections.WithLabelValues(string(f.Field)).Inc()
		logging.Warn().
			Str("content_id", contentID).
			Str("field", string(f.Field)).
			Int64("stored", f.Stored).
			Int64("actual", f.Actual).
			Msg("Counter corrected")
	}
	return fixes, nil
}
