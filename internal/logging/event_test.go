// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEventLogger_Lifecycle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	el := NewEventLoggerWithLogger(zerolog.New(&buf))
	ctx := ContextWithCorrelationID(context.Background(), "req-9")

	el.LogRetry(ctx, "evt-1", "LIKE", "vid-1", 2, errors.New("store timeout"))
	el.LogDeadLettered(ctx, "evt-1", "max_attempts", 5)
	el.LogBroadcastFailed(ctx, "vid-1", errors.New("no subscribers"))

	out := buf.String()
	for _, want := range []string{
		`"component":"eventprocessor"`,
		`"event_id":"evt-1"`,
		`"kind":"LIKE"`,
		`"attempt":2`,
		`"reason":"max_attempts"`,
		`"correlation_id":"req-9"`,
		`"error":"store timeout"`,
		`"message":"snapshot broadcast failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestEventLogger_CorrelationMatchingEventIDOmitted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	el := NewEventLoggerWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
	ctx := ContextWithCorrelationID(context.Background(), "evt-2")

	el.LogRetry(ctx, "evt-2", "VIEW", "vid-2", 1, errors.New("x"))

	if strings.Contains(buf.String(), "correlation_id") {
		t.Errorf("correlation_id equal to event_id should be omitted: %s", buf.String())
	}
}

func TestEventLogger_AppliedIsDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	el := NewEventLoggerWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	el.LogEventApplied(context.Background(), "evt-3", "COMMENT", "vid-3", time.Millisecond)
	el.LogDuplicateSuppressed(context.Background(), "evt-3", "COMMENT", "vid-3")

	if buf.Len() != 0 {
		t.Errorf("applied/duplicate entries should be debug level: %s", buf.String())
	}
}
