// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagecast/internal/models"
)

// Metadata keys set on every event message.
const (
	MetadataKind      = "kind"
	MetadataContentID = "content_id"
)

// Serializer handles event encoding/decoding for queue messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes. Invalid events are refused so a
// malformed payload never reaches the queue from this process.
func (s *Serializer) Marshal(event *models.EngagementEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes to an event. Undecodable payloads come back
// as *models.MalformedEventError; field validation is left to the caller.
func (s *Serializer) Unmarshal(data []byte) (*models.EngagementEvent, error) {
	var event models.EngagementEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, &models.MalformedEventError{Field: "payload", Reason: err.Error()}
	}

	return &event, nil
}

// MarshalSnapshot encodes a snapshot for the fan-out topic.
func MarshalSnapshot(snap models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a snapshot from the fan-out topic.
func UnmarshalSnapshot(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
