// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

// Broadcaster receives the snapshot of a content item after every applied
// mutation.
type Broadcaster interface {
	Publish(ctx context.Context, snap models.Snapshot) error
}

// EngagementHandler applies engagement events to the aggregate store. It
// holds no per-event state: every guarantee comes from the store's
// conditional primitives, so any number of handlers may run concurrently.
type EngagementHandler struct {
	store       store.AggregateStore
	broadcaster Broadcaster
	serializer  *Serializer
	events      *logging.EventLogger
	now         func() time.Time
}

// NewEngagementHandler creates a handler. broadcaster may be nil, in which
// case applied mutations are not announced.
func NewEngagementHandler(s store.AggregateStore, broadcaster Broadcaster) *EngagementHandler {
	return &EngagementHandler{
		store:       s,
		broadcaster: broadcaster,
		serializer:  NewSerializer(),
		events:      logging.NewEventLogger(),
		now:         time.Now,
	}
}

// Handle is the Watermill handler. A nil return acks the message.
// Undecodable or invalid payloads return a PermanentError; store and
// broadcast failures return a RetryableError.
func (h *EngagementHandler) Handle(msg *message.Message) error {
	event, err := h.serializer.Unmarshal(msg.Payload)
	if err != nil {
		metrics.RecordProcessingError(ErrorCategoryValidation.String())
		return NewPermanentError("decode event "+msg.UUID, err)
	}

	_, err = h.Process(msg.Context(), event)
	return err
}

// Process validates and applies one event, then broadcasts the content's
// current snapshot.
func (h *EngagementHandler) Process(ctx context.Context, event *models.EngagementEvent) (models.Outcome, error) {
	start := time.Now()
	kind := event.Kind.String()

	if err := event.Validate(); err != nil {
		metrics.RecordProcessingError(ErrorCategoryValidation.String())
		return models.OutcomeDuplicate, NewPermanentError("invalid event", err)
	}

	outcome, err := store.ApplyEvent(ctx, h.store, event)
	if err != nil {
		classified := Classify("apply "+kind, err)
		metrics.RecordProcessingError(CategoryOf(classified).String())
		return outcome, classified
	}

	metrics.RecordEventProcessed(kind, outcome.String(), time.Since(start))

	if outcome == models.OutcomeDuplicate {
		h.events.LogDuplicateSuppressed(ctx, event.EventID, kind, event.ContentID)
	} else {
		h.events.LogEventApplied(ctx, event.EventID, kind, event.ContentID, time.Since(start))
	}

	// Duplicates re-broadcast the unchanged snapshot, so a redelivery after a
	// failed broadcast still reaches subscribers.
	if err := h.broadcast(ctx, event.ContentID); err != nil {
		retry := NewRetryableError("broadcast "+event.ContentID, err)
		metrics.RecordProcessingError(retry.Category.String())
		return outcome, retry
	}
	return outcome, nil
}

// broadcast reads back and publishes the snapshot of contentID.
func (h *EngagementHandler) broadcast(ctx context.Context, contentID string) error {
	if h.broadcaster == nil {
		return nil
	}

	item, err := h.store.GetContent(ctx, contentID)
	if err == nil {
		err = h.broadcaster.Publish(ctx, item.Snapshot(h.now()))
	}
	metrics.RecordBroadcast(err)
	if err != nil {
		h.events.LogBroadcastFailed(ctx, contentID, err)
	}
	return err
}
