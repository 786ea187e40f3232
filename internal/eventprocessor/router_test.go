// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/engagecast/internal/models"
)

var errStoreDown = errors.New("store unavailable")

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.CloseTimeout != 30*time.Second {
		t.Errorf("Expected CloseTimeout=30s, got %v", cfg.CloseTimeout)
	}
	if cfg.RetryMaxRetries != 3 {
		t.Errorf("Expected RetryMaxRetries=3, got %d", cfg.RetryMaxRetries)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("Expected MaxAttempts=5, got %d", cfg.MaxAttempts)
	}
	if cfg.PoisonQueueTopic != "engagement.dlq" {
		t.Errorf("Expected PoisonQueueTopic=engagement.dlq, got %s", cfg.PoisonQueueTopic)
	}
}

func TestNewRouter_RequiresDeadLetterTarget(t *testing.T) {
	cfg := DefaultRouterConfig()
	if _, err := NewRouter(&cfg, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil publisher: err = %v, want ErrInvalidConfig", err)
	}

	cfg.PoisonQueueTopic = ""
	if _, err := NewRouter(&cfg, &fakePublisher{}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty topic: err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewRouter_NilConfigUsesDefaults(t *testing.T) {
	r, err := NewRouter(nil, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if r.config.MaxAttempts != DefaultRouterConfig().MaxAttempts {
		t.Errorf("MaxAttempts = %d", r.config.MaxAttempts)
	}
	if r.IsRunning() {
		t.Error("router should not be running before Run")
	}
}

func TestRouter_CountAttempts(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.MaxAttempts = 3
	r := newTestRouter(t, &cfg)

	failing := r.countAttempts(func(*message.Message) ([]*message.Message, error) {
		return nil, NewRetryableError("apply", errStoreDown)
	})

	msg := message.NewMessage("event-1", nil)
	for i := 1; i < 3; i++ {
		_, err := failing(msg)
		if !IsRetryableError(err) || IsExhausted(err) {
			t.Fatalf("delivery %d: err = %v, want plain retryable", i, err)
		}
		if msg.Metadata.Get(MetadataDeadLetterCode) != "" {
			t.Fatalf("delivery %d marked for dead-letter too early", i)
		}
	}
	if r.PendingAttempts() != 1 {
		t.Errorf("PendingAttempts() = %d, want 1", r.PendingAttempts())
	}

	_, err := failing(msg)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("third delivery err = %v, want ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, errStoreDown) {
		t.Error("ExhaustedError should wrap the last failure")
	}
	if msg.Metadata.Get(MetadataDeadLetterCode) != DeadLetterExhausted || msg.Metadata.Get(MetadataAttempts) != "3" {
		t.Errorf("metadata = %v", msg.Metadata)
	}
	if r.PendingAttempts() != 0 {
		t.Errorf("exhausted event should be forgotten, PendingAttempts() = %d", r.PendingAttempts())
	}
}

func TestRouter_CountAttempts_PermanentIsMalformed(t *testing.T) {
	r := newTestRouter(t, nil)

	h := r.countAttempts(func(*message.Message) ([]*message.Message, error) {
		return nil, NewPermanentError("decode", &models.MalformedEventError{Field: "payload", Reason: "bad"})
	})

	msg := message.NewMessage("event-2", nil)
	_, err := h(msg)
	if !IsPermanentError(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if msg.Metadata.Get(MetadataDeadLetterCode) != DeadLetterMalformed {
		t.Errorf("code = %q, want malformed", msg.Metadata.Get(MetadataDeadLetterCode))
	}
	if msg.Metadata.Get(MetadataAttempts) != "1" {
		t.Errorf("attempts = %q, want 1", msg.Metadata.Get(MetadataAttempts))
	}
}

func TestRouter_CountAttempts_SuccessClears(t *testing.T) {
	r := newTestRouter(t, nil)

	var fail atomic.Bool
	fail.Store(true)
	h := r.countAttempts(func(*message.Message) ([]*message.Message, error) {
		if fail.Load() {
			return nil, errStoreDown
		}
		return nil, nil
	})

	msg := message.NewMessage("event-3", nil)
	_, _ = h(msg)
	if r.PendingAttempts() != 1 {
		t.Fatalf("PendingAttempts() = %d, want 1", r.PendingAttempts())
	}

	fail.Store(false)
	if _, err := h(msg); err != nil {
		t.Fatalf("err = %v", err)
	}
	if r.PendingAttempts() != 0 {
		t.Errorf("PendingAttempts() = %d after success, want 0", r.PendingAttempts())
	}
}

func TestRouter_RetryTransient(t *testing.T) {
	r := newTestRouter(t, nil)

	t.Run("recovers within retries", func(t *testing.T) {
		var calls atomic.Int32
		h := r.retryTransient(func(*message.Message) ([]*message.Message, error) {
			if calls.Add(1) < 3 {
				return nil, NewRetryableError("apply", errStoreDown)
			}
			return nil, nil
		})

		if _, err := h(message.NewMessage("event-4", nil)); err != nil {
			t.Fatalf("err = %v, want recovery on third call", err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("gives up after retries", func(t *testing.T) {
		var calls atomic.Int32
		h := r.retryTransient(func(*message.Message) ([]*message.Message, error) {
			calls.Add(1)
			return nil, NewRetryableError("apply", errStoreDown)
		})

		_, err := h(message.NewMessage("event-5", nil))
		if !errors.Is(err, errStoreDown) {
			t.Fatalf("err = %v, want the store failure", err)
		}
		if want := int32(r.config.RetryMaxRetries + 1); calls.Load() != want {
			t.Errorf("calls = %d, want %d", calls.Load(), want)
		}
	})

	t.Run("permanent stops at once", func(t *testing.T) {
		var calls atomic.Int32
		h := r.retryTransient(func(*message.Message) ([]*message.Message, error) {
			calls.Add(1)
			return nil, NewPermanentError("decode", errors.New("bad payload"))
		})

		_, err := h(message.NewMessage("event-6", nil))
		if !IsPermanentError(err) {
			t.Fatalf("err = %v, want permanent", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestRouter_BoundInvocation(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.HandlerTimeout = 50 * time.Millisecond
	r := newTestRouter(t, &cfg)

	h := r.boundInvocation(func(msg *message.Message) ([]*message.Message, error) {
		if _, ok := msg.Context().Deadline(); !ok {
			t.Error("handler context has no deadline")
		}
		<-msg.Context().Done()
		return nil, msg.Context().Err()
	})

	msg := message.NewMessage("event-7", nil)
	_, err := h(msg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if msg.Context().Err() != nil {
		t.Error("message context should be restored after the invocation")
	}
	if _, ok := msg.Context().Deadline(); ok {
		t.Error("restored context should not carry the invocation deadline")
	}
}

func TestShouldDeadLetter(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", NewPermanentError("x", nil), true},
		{"exhausted", &ExhaustedError{Attempts: 5, Err: errStoreDown}, true},
		{"retryable", NewRetryableError("x", errStoreDown), false},
		{"plain", errStoreDown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldDeadLetter(tt.err); got != tt.want {
				t.Errorf("shouldDeadLetter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouter_ExhaustedEventReachesDeadLetterTopic(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, NewWatermillLogger())
	defer pubSub.Close()

	cfg := DefaultRouterConfig()
	cfg.MaxAttempts = 2
	cfg.RetryMaxRetries = 0
	cfg.HandlerTimeout = time.Second
	cfg.CloseTimeout = time.Second
	r, err := NewRouter(&cfg, pubSub, NewWatermillLogger())
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	var calls atomic.Int32
	if _, err := r.AddEventHandler("failing", "engagement.events", pubSub, func(*message.Message) error {
		calls.Add(1)
		return NewRetryableError("apply", errStoreDown)
	}); err != nil {
		t.Fatalf("AddEventHandler() error = %v", err)
	}
	dlq := NewDLQConsumer(10)
	r.AddConsumerHandler("dlq", cfg.PoisonQueueTopic, pubSub, dlq.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	<-r.Running()
	defer r.Close()

	if err := pubSub.Publish("engagement.events", message.NewMessage("event-8", []byte("{}"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return dlq.Stats().Total == 1 })

	entry := dlq.List(1)[0]
	if entry.EventID != "event-8" || entry.Code != DeadLetterExhausted || entry.Attempts != 2 {
		t.Errorf("entry = %+v", entry)
	}
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}
	if !r.IsRunning() {
		t.Error("IsRunning() = false while running")
	}
}

func TestRouter_Serve(t *testing.T) {
	newRunning := func(t *testing.T, ctx context.Context) (*Router, chan error) {
		t.Helper()
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, NewWatermillLogger())
		t.Cleanup(func() { _ = pubSub.Close() })

		cfg := DefaultRouterConfig()
		cfg.CloseTimeout = time.Second
		r, err := NewRouter(&cfg, pubSub, NewWatermillLogger())
		if err != nil {
			t.Fatalf("NewRouter() error = %v", err)
		}
		r.AddConsumerHandler("noop", "engagement.events", pubSub, func(*message.Message) error { return nil })

		errCh := make(chan error, 1)
		go func() { errCh <- r.Serve(ctx) }()
		<-r.Running()
		return r, errCh
	}

	t.Run("cancel returns ctx error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, errCh := newRunning(t, ctx)
		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	})

	t.Run("unrequested stop terminates the tree", func(t *testing.T) {
		r, errCh := newRunning(t, context.Background())
		_ = r.Close()
		if err := <-errCh; !errors.Is(err, suture.ErrTerminateSupervisorTree) {
			t.Errorf("Serve() = %v, want ErrTerminateSupervisorTree", err)
		}
		if got := r.String(); got != "engagement-router" {
			t.Errorf("String() = %q", got)
		}
	})
}
