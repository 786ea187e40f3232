// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventLogger logs the lifecycle of engagement events inside the event
// processor: applied, suppressed as duplicate, retried, dead-lettered.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger tags the global logger with component=eventprocessor.
func NewEventLogger() *EventLogger {
	return &EventLogger{
		logger: With().Str("component", "eventprocessor").Logger(),
	}
}

// NewEventLoggerWithLogger wraps a specific logger.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func NewEventLoggerWithLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{
		logger: logger.With().Str("component", "eventprocessor").Logger(),
	}
}

func (e *EventLogger) forEvent(ctx context.Context, eventID, kind, contentID string) zerolog.Logger {
	lc := e.logger.With().
		Str("event_id", eventID).
		Str("kind", kind).
		Str("content_id", contentID)
	if id := CorrelationIDFromContext(ctx); id != "" && id != eventID {
		lc = lc.Str("correlation_id", id)
	}
	return lc.Logger()
}

// LogEventApplied records a mutation that changed the aggregate store.
func (e *EventLogger) LogEventApplied(ctx context.Context, eventID, kind, contentID string, took time.Duration) {
	l := e.forEvent(ctx, eventID, kind, contentID)
	l.Debug().Dur("took", took).Msg("engagement event applied")
}

// LogDuplicateSuppressed records a redelivered or repeated event that was
// acknowledged without changing any counter.
func (e *EventLogger) LogDuplicateSuppressed(ctx context.Context, eventID, kind, contentID string) {
	l := e.forEvent(ctx, eventID, kind, contentID)
	l.Debug().Msg("duplicate engagement event suppressed")
}

// LogRetry records a transient failure that will be redelivered.
func (e *EventLogger) LogRetry(ctx context.Context, eventID, kind, contentID string, attempt int, err error) {
	l := e.forEvent(ctx, eventID, kind, contentID)
	l.Warn().Err(err).Int("attempt", attempt).Msg("engagement event failed, will be redelivered")
}

// LogDeadLettered records an event moved to the dead-letter topic.
func (e *EventLogger) LogDeadLettered(ctx context.Context, eventID, reason string, attempts int) {
	l := e.logger.With().Str("event_id", eventID).Logger()
	if id := CorrelationIDFromContext(ctx); id != "" && id != eventID {
		l = l.With().Str("correlation_id", id).Logger()
	}
	l.Error().Str("reason", reason).Int("attempts", attempts).Msg("engagement event dead-lettered")
}

// LogBroadcastFailed records a snapshot that could not be published after
// the store commit succeeded. The event is redelivered.
func (e *EventLogger) LogBroadcastFailed(ctx context.Context, contentID string, err error) {
	l := e.logger.With().Str("content_id", contentID).Logger()
	if id := CorrelationIDFromContext(ctx); id != "" {
		l = l.With().Str("correlation_id", id).Logger()
	}
	l.Warn().Err(err).Msg("snapshot broadcast failed")
}
