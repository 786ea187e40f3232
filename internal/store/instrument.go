// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package store

import (
	"context"
	"time"

	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
)

// Instrumented records duration and errors of every call on the wrapped
// store under engagecast_store_operation_*{backend}.
type Instrumented struct {
	AggregateStore
	backend string
}

// Instrument wraps s with Prometheus timing.
func Instrument(s AggregateStore, backend string) *Instrumented {
	return &Instrumented{AggregateStore: s, backend: backend}
}

// Unwrap returns the wrapped store.
func (i *Instrumented) Unwrap() AggregateStore { return i.AggregateStore }

func (i *Instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(i.backend, op, time.Since(start), err)
}

func (i *Instrumented) ApplyLike(ctx context.Context, contentID, userID string, at time.Time) (out models.Outcome, err error) {
	defer func(start time.Time) { i.observe("apply_like", start, err) }(time.Now())
	return i.AggregateStore.ApplyLike(ctx, contentID, userID, at)
}

func (i *Instrumented) ApplyUnlike(ctx context.Context, contentID, userID string, at time.Time) (out models.Outcome, err error) {
	defer func(start time.Time) { i.observe("apply_unlike", start, err) }(time.Now())
	return i.AggregateStore.ApplyUnlike(ctx, contentID, userID, at)
}

func (i *Instrumented) ApplyComment(ctx context.Context, c *models.Comment) (out models.Outcome, err error) {
	defer func(start time.Time) { i.observe("apply_comment", start, err) }(time.Now())
	return i.AggregateStore.ApplyComment(ctx, c)
}

func (i *Instrumented) ApplyView(ctx context.Context, contentID, userID string, at time.Time) (out models.Outcome, err error) {
	defer func(start time.Time) { i.observe("apply_view", start, err) }(time.Now())
	return i.AggregateStore.ApplyView(ctx, contentID, userID, at)
}

func (i *Instrumented) GetContent(ctx context.Context, contentID string) (item *models.ContentItem, err error) {
	defer func(start time.Time) { i.observe("get_content", start, err) }(time.Now())
	return i.AggregateStore.GetContent(ctx, contentID)
}

func (i *Instrumented) ListComments(ctx context.Context, contentID string, limit int) (c []models.Comment, err error) {
	defer func(start time.Time) { i.observe("list_comments", start, err) }(time.Now())
	return i.AggregateStore.ListComments(ctx, contentID, limit)
}
