// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

// fakeStream answers Info from its stored config and state. Every other
// jetstream.Stream method panics through the nil embedded interface.
type fakeStream struct {
	jetstream.Stream
	cfg   jetstream.StreamConfig
	state jetstream.StreamState
}

func (f *fakeStream) Info(_ context.Context, _ ...jetstream.StreamInfoOpt) (*jetstream.StreamInfo, error) {
	return &jetstream.StreamInfo{Config: f.cfg, State: f.state}, nil
}

type fakeJetStream struct {
	mu        sync.Mutex
	streams   map[string]*fakeStream
	lookupErr error
	createErr error
	updateErr error
	creates   int
	updates   int
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{streams: make(map[string]*fakeStream)}
}

func (f *fakeJetStream) Stream(_ context.Context, name string) (jetstream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if s, ok := f.streams[name]; ok {
		return s, nil
	}
	return nil, jetstream.ErrStreamNotFound
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := &fakeStream{cfg: cfg}
	f.streams[cfg.Name] = s
	return s, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	s, ok := f.streams[cfg.Name]
	if !ok {
		return nil, jetstream.ErrStreamNotFound
	}
	s.cfg = cfg
	return s, nil
}

var engagementTopics = Topics{Events: "engagement.events", DLQ: "engagement.dlq", Snapshots: "engagement.snapshots"}

func engagementStreamConfig() *StreamConfig {
	cfg := DefaultStreamConfig()
	return &cfg
}

func TestNewStreamInitializer_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		js       JetStreamContext
		subjects []string
		wantErr  bool
	}{
		{"events and dlq", newFakeJetStream(), []string{"engagement.events", "engagement.dlq"}, false},
		{"nil jetstream", nil, []string{"engagement.events", "engagement.dlq"}, true},
		{"dlq not captured", newFakeJetStream(), []string{"engagement.events"}, true},
		{"events not captured", newFakeJetStream(), []string{"engagement.dlq"}, true},
		{"snapshots captured", newFakeJetStream(), []string{"engagement.events", "engagement.dlq", "engagement.snapshots"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := engagementStreamConfig()
			cfg.Subjects = tt.subjects
			_, err := NewStreamInitializer(tt.js, cfg, engagementTopics)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := NewStreamInitializer(newFakeJetStream(), nil, engagementTopics); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil config err = %v", err)
	}
}

func TestStreamInitializer_EnsureStream_CreatesThenUpdates(t *testing.T) {
	t.Parallel()

	js := newFakeJetStream()
	si, err := NewStreamInitializer(js, engagementStreamConfig(), engagementTopics)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := si.EnsureStream(ctx); err != nil {
			t.Fatalf("EnsureStream() #%d error = %v", i, err)
		}
	}
	if js.creates != 1 || js.updates != 2 {
		t.Errorf("creates = %d, updates = %d, want 1 and 2", js.creates, js.updates)
	}

	got := js.streams["ENGAGEMENT"].cfg
	if got.Storage != jetstream.FileStorage || got.Retention != jetstream.LimitsPolicy {
		t.Errorf("storage/retention = %v/%v", got.Storage, got.Retention)
	}
	if got.Duplicates != DefaultStreamConfig().DuplicateWindow {
		t.Errorf("Duplicates = %v, want the dedup window", got.Duplicates)
	}
	if len(got.Subjects) != 2 || got.Subjects[0] != "engagement.events" || got.Subjects[1] != "engagement.dlq" {
		t.Errorf("Subjects = %v", got.Subjects)
	}
	if !got.AllowDirect {
		t.Error("AllowDirect must be set for sequence lookups")
	}
}

func TestStreamInitializer_EnsureStream_Errors(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("nats: timeout")
	tests := []struct {
		name  string
		setup func(*fakeJetStream)
	}{
		{"lookup fails", func(js *fakeJetStream) { js.lookupErr = backendErr }},
		{"create fails", func(js *fakeJetStream) { js.createErr = backendErr }},
		{"update fails", func(js *fakeJetStream) {
			js.streams["ENGAGEMENT"] = &fakeStream{}
			js.updateErr = backendErr
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			js := newFakeJetStream()
			tt.setup(js)
			si, err := NewStreamInitializer(js, engagementStreamConfig(), engagementTopics)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := si.EnsureStream(context.Background()); !errors.Is(err, backendErr) {
				t.Errorf("err = %v, want wrapped %v", err, backendErr)
			}
		})
	}
}

func TestStreamInitializer_HealthCheck(t *testing.T) {
	t.Parallel()

	js := newFakeJetStream()
	si, err := NewStreamInitializer(js, engagementStreamConfig(), engagementTopics)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if h := si.HealthCheck(ctx); h.Healthy || h.Error == "" {
		t.Errorf("missing stream = %+v", h)
	}

	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatal(err)
	}
	js.streams["ENGAGEMENT"].state = jetstream.StreamState{
		Consumers: 2,
		Subjects:  map[string]uint64{"engagement.events": 40, "engagement.dlq": 3},
	}

	h := si.HealthCheck(ctx)
	if !h.Healthy {
		t.Fatalf("health = %+v", h)
	}
	if h.Details["events_retained"] != uint64(40) || h.Details["dead_letters"] != uint64(3) {
		t.Errorf("details = %v", h.Details)
	}
}
