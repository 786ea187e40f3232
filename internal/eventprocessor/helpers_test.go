// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

func init() {
	logging.SetOutput(io.Discard)
}

// fakePublisher records published messages per topic. When err is set every
// Publish fails with it.
type fakePublisher struct {
	mu     sync.Mutex
	err    error
	msgs   map[string][]*message.Message
	closed bool
}

func (p *fakePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.msgs == nil {
		p.msgs = make(map[string][]*message.Message)
	}
	p.msgs[topic] = append(p.msgs[topic], msgs...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) published(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.msgs[topic]...)
}

// recordingBroadcaster collects every snapshot it is given.
type recordingBroadcaster struct {
	mu    sync.Mutex
	err   error
	snaps []models.Snapshot
}

func (b *recordingBroadcaster) Publish(_ context.Context, snap models.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, snap)
	return b.err
}

func (b *recordingBroadcaster) snapshots() []models.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Snapshot(nil), b.snaps...)
}

func newTestEvent(kind models.EventKind, contentID, userID string) *models.EngagementEvent {
	e := &models.EngagementEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		ContentID:  contentID,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}
	if kind == models.KindComment {
		e.Text = "nice video"
	}
	return e
}

func deadLetterMessage(id, code, attempts string) *message.Message {
	msg := message.NewMessage(id, []byte(`{"broken"`))
	msg.Metadata.Set(MetadataDeadLetterCode, code)
	msg.Metadata.Set(MetadataAttempts, attempts)
	msg.Metadata.Set(middleware.ReasonForPoisonedKey, "test failure")
	return msg
}

func newTestRouter(t *testing.T, cfg *RouterConfig) *Router {
	t.Helper()
	if cfg == nil {
		c := DefaultRouterConfig()
		c.RetryInitialInterval = time.Millisecond
		c.RetryMaxInterval = 5 * time.Millisecond
		cfg = &c
	}
	r, err := NewRouter(cfg, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return r
}

func newMemoryStore(t *testing.T) store.AggregateStore {
	t.Helper()
	s, err := store.NewBadgerStore(store.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// flakyStore fails the first failures Apply calls with a transient error.
type flakyStore struct {
	store.AggregateStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return store.Transient("apply", context.DeadlineExceeded)
	}
	return nil
}

func (f *flakyStore) ApplyView(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	if err := f.fail(); err != nil {
		return models.OutcomeDuplicate, err
	}
	return f.AggregateStore.ApplyView(ctx, contentID, userID, at)
}

func (f *flakyStore) ApplyLike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	if err := f.fail(); err != nil {
		return models.OutcomeDuplicate, err
	}
	return f.AggregateStore.ApplyLike(ctx, contentID, userID, at)
}

func (f *flakyStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
