// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/engagecast/internal/eventprocessor"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
)

// SnapshotSubscriber forwards snapshots published by any node's processor
// to the local hub.
type SnapshotSubscriber struct {
	hub        *Hub
	subscriber message.Subscriber
	topic      string
}

// NewSnapshotSubscriber creates a bridge from topic to hub.
func NewSnapshotSubscriber(hub *Hub, subscriber message.Subscriber, topic string) *SnapshotSubscriber {
	return &SnapshotSubscriber{hub: hub, subscriber: subscriber, topic: topic}
}

// Serve subscribes and forwards until ctx is canceled. It implements
// suture.Service; a closed subscription returns an error so the supervisor
// restarts it.
func (s *SnapshotSubscriber) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}

	logging.Info().Str("topic", s.topic).Msg("Snapshot subscriber started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("snapshot subscription closed")
			}
			s.forward(ctx, msg)
		}
	}
}

// forward acks every message: snapshots are best effort and a stale one is
// superseded by the next.
func (s *SnapshotSubscriber) forward(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	snap, err := eventprocessor.UnmarshalSnapshot(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Discarding undecodable snapshot")
		metrics.BroadcastPublishedTotal.WithLabelValues("forward_error").Inc()
		return
	}

	if err := s.hub.Publish(ctx, snap); err != nil {
		logging.Warn().Err(err).Str("content_id", snap.ContentID).Msg("Hub rejected snapshot")
		metrics.BroadcastPublishedTotal.WithLabelValues("forward_error").Inc()
		return
	}
	metrics.BroadcastPublishedTotal.WithLabelValues("forward_ok").Inc()
}

// String names the service in supervisor logs.
func (s *SnapshotSubscriber) String() string {
	return "snapshot-subscriber"
}
