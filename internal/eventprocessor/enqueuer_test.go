// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/engagecast/internal/models"
)

func TestEnqueuer_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	enq := NewEnqueuer(pub, "engagement.events", nil, time.Second)

	event := newTestEvent(models.KindComment, "video-1", "user-1")
	if err := enq.Enqueue(context.Background(), event); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msgs := pub.published("engagement.events")
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.UUID != event.EventID {
		t.Errorf("message UUID = %s, want event id %s", msg.UUID, event.EventID)
	}
	if msg.Metadata.Get(MetadataKind) != "COMMENT" || msg.Metadata.Get(MetadataContentID) != "video-1" {
		t.Errorf("metadata = %v", msg.Metadata)
	}

	decoded, err := NewSerializer().Unmarshal(msg.Payload)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Text != event.Text || decoded.UserID != event.UserID {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestEnqueuer_RejectsInvalidEvent(t *testing.T) {
	pub := &fakePublisher{}
	enq := NewEnqueuer(pub, "engagement.events", nil, time.Second)

	event := newTestEvent(models.KindComment, "video-1", "user-1")
	event.Text = ""
	err := enq.Enqueue(context.Background(), event)
	if !models.IsMalformedEvent(err) {
		t.Fatalf("err = %v, want malformed", err)
	}
	if len(pub.published("engagement.events")) != 0 {
		t.Error("invalid event must not be published")
	}
}

func TestEnqueuer_PublishFailureIsUnavailable(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: no responders available")}
	enq := NewEnqueuer(pub, "engagement.events", nil, time.Second).WithRetryAfter(3 * time.Second)

	err := enq.Enqueue(context.Background(), newTestEvent(models.KindView, "video-1", "user-1"))

	var unavailable *models.ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want ServiceUnavailableError", err)
	}
	if unavailable.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", unavailable.RetryAfter)
	}
	if !errors.Is(err, pub.err) {
		t.Error("unavailable error should wrap the publish failure")
	}
}

func TestEnqueuer_OpenBreakerShedsLoad(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: timeout")}
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "enqueue-shed",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	})
	enq := NewEnqueuer(pub, "engagement.events", breaker, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = enq.Enqueue(ctx, newTestEvent(models.KindView, "video-1", "user-1"))
	}

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	err := enq.Enqueue(ctx, newTestEvent(models.KindView, "video-1", "user-2"))
	if !models.IsServiceUnavailable(err) {
		t.Fatalf("err = %v, want service unavailable", err)
	}
	var unavailable *models.ServiceUnavailableError
	errors.As(err, &unavailable)
	if unavailable.Reason != "delivery queue circuit open" {
		t.Errorf("Reason = %q", unavailable.Reason)
	}
	if len(pub.published("engagement.events")) != 0 {
		t.Error("open breaker must not reach the publisher")
	}
}

// blockingPublisher never returns until released.
type blockingPublisher struct {
	release chan struct{}
}

func (p *blockingPublisher) Publish(string, ...*message.Message) error {
	<-p.release
	return nil
}

func (p *blockingPublisher) Close() error { return nil }

func TestEnqueuer_Timeout(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	defer close(pub.release)
	enq := NewEnqueuer(pub, "engagement.events", nil, 50*time.Millisecond)

	start := time.Now()
	err := enq.Enqueue(context.Background(), newTestEvent(models.KindView, "video-1", "user-1"))
	if !models.IsServiceUnavailable(err) {
		t.Fatalf("err = %v, want service unavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped deadline", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Enqueue took %v, want about 50ms", elapsed)
	}
}
