// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/engagecast/internal/logging"
)

// JetStreamContext is the part of jetstream.JetStream the initializer needs.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer owns the stream carrying engagement events and dead
// letters. It runs before any publisher or subscriber binds, so both see file
// storage and the Nats-Msg-Id duplicate window that makes a re-sent event a
// no-op.
type StreamInitializer struct {
	js     JetStreamContext
	config StreamConfig
	topics Topics
}

// NewStreamInitializer checks that cfg captures the events and DLQ subjects
// of topics. Snapshots travel on core NATS and must not be captured.
func NewStreamInitializer(js JetStreamContext, cfg *StreamConfig, topics Topics) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("%w: JetStream context required", ErrInvalidConfig)
	}
	if cfg == nil || cfg.Name == "" {
		return nil, fmt.Errorf("%w: stream name required", ErrInvalidConfig)
	}
	for _, subject := range []string{topics.Events, topics.DLQ} {
		if !slices.Contains(cfg.Subjects, subject) {
			return nil, fmt.Errorf("%w: stream %s does not capture %q", ErrInvalidConfig, cfg.Name, subject)
		}
	}
	if topics.Snapshots != "" && slices.Contains(cfg.Subjects, topics.Snapshots) {
		return nil, fmt.Errorf("%w: stream %s must not capture snapshots subject %q", ErrInvalidConfig, cfg.Name, topics.Snapshots)
	}

	return &StreamInitializer{js: js, config: *cfg, topics: topics}, nil
}

func (s *StreamInitializer) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        s.config.Name,
		Subjects:    s.config.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.config.MaxAge,
		MaxBytes:    s.config.MaxBytes,
		MaxMsgs:     s.config.MaxMsgs,
		Duplicates:  s.config.DuplicateWindow,
		Replicas:    s.config.Replicas,
		Storage:     jetstream.FileStorage,
		AllowDirect: true, // the MAX_DELIVERIES watcher fetches by sequence
		Discard:     jetstream.DiscardOld,
	}
}

// EnsureStream creates the stream, or updates an existing one to the
// configured limits. It is idempotent.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	cfg := s.streamConfig()

	_, err := s.js.Stream(ctx, cfg.Name)
	switch {
	case err == nil:
		stream, err := s.js.UpdateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		logging.Info().Str("stream", cfg.Name).Strs("subjects", cfg.Subjects).Msg("Engagement stream updated")
		return stream, nil

	case errors.Is(err, jetstream.ErrStreamNotFound):
		stream, err := s.js.CreateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logging.Info().
			Str("stream", cfg.Name).
			Strs("subjects", cfg.Subjects).
			Dur("duplicate_window", cfg.Duplicates).
			Msg("Engagement stream created")
		return stream, nil

	default:
		return nil, fmt.Errorf("check stream %s: %w", cfg.Name, err)
	}
}

// HealthCheck implements HealthCheckable. Details carry how many events and
// dead letters the stream retains.
func (s *StreamInitializer) HealthCheck(ctx context.Context) ComponentHealth {
	stream, err := s.js.Stream(ctx, s.config.Name)
	if err != nil {
		return ComponentHealth{Error: fmt.Sprintf("stream %s: %v", s.config.Name, err)}
	}
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(">"))
	if err != nil {
		return ComponentHealth{Error: fmt.Sprintf("stream %s info: %v", s.config.Name, err)}
	}

	return ComponentHealth{
		Healthy: true,
		Details: map[string]interface{}{
			"stream":          s.config.Name,
			"events_retained": info.State.Subjects[s.topics.Events],
			"dead_letters":    info.State.Subjects[s.topics.DLQ],
			"consumers":       info.State.Consumers,
		},
	}
}
