// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/engagecast/internal/models"
)

// TopicBroadcaster publishes snapshots to a pub/sub topic that every node's
// hub listens on.
type TopicBroadcaster struct {
	publisher message.Publisher
	topic     string
}

// NewTopicBroadcaster creates a Broadcaster publishing to topic.
func NewTopicBroadcaster(publisher message.Publisher, topic string) *TopicBroadcaster {
	return &TopicBroadcaster{publisher: publisher, topic: topic}
}

// Publish implements Broadcaster.
func (b *TopicBroadcaster) Publish(ctx context.Context, snap models.Snapshot) error {
	data, err := MarshalSnapshot(snap)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataContentID, snap.ContentID)
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish snapshot for %s: %w", snap.ContentID, err)
	}
	return nil
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(ctx context.Context, snap models.Snapshot) error

// Publish implements Broadcaster.
func (f BroadcasterFunc) Publish(ctx context.Context, snap models.Snapshot) error {
	return f(ctx, snap)
}
