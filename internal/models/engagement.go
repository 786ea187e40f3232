// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package models

import (
	"time"

	"github.com/tomtom215/engagecast/internal/validation"
)

// EventKind is the engagement action an event carries.
type EventKind string

const (
	KindLike    EventKind = "LIKE"
	KindUnlike  EventKind = "UNLIKE"
	KindComment EventKind = "COMMENT"
	KindView    EventKind = "VIEW"
)

// AllKinds lists every kind in a stable order (metrics pre-registration, CLI help).
var AllKinds = []EventKind{KindLike, KindUnlike, KindComment, KindView}

// Valid reports whether k is one of the four known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindLike, KindUnlike, KindComment, KindView:
		return true
	default:
		return false
	}
}

func (k EventKind) String() string {
	return string(k)
}

// EngagementEvent is the unit carried by the delivery queue.
//
// EventID is generated once at ingestion and survives every redelivery; it is
// the idempotency key for COMMENT and the message id used by JetStream
// publish de-duplication. Text and UserEmail are only meaningful for COMMENT.
type EngagementEvent struct {
	EventID    string    `json:"eventId" validate:"required,uuid"`
	Kind       EventKind `json:"kind" validate:"required,oneof=LIKE UNLIKE COMMENT VIEW"`
	ContentID  string    `json:"contentId" validate:"required,contentid"`
	UserID     string    `json:"userId" validate:"required,max=256"`
	Text       string    `json:"text,omitempty" validate:"omitempty,commenttext"`
	UserEmail  string    `json:"userEmail,omitempty" validate:"omitempty,email"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Validate checks that the event can be applied. It returns a
// *MalformedEventError naming the first offending field; retrying a
// malformed event can never succeed.
func (e *EngagementEvent) Validate() error {
	if verr := validation.ValidateStruct(e); verr != nil {
		first := verr.First()
		return &MalformedEventError{EventID: e.EventID, Field: first.Field(), Reason: first.Error()}
	}

	// EnqueuedAt orders likes against unlikes and dates comments.
	if e.EnqueuedAt.IsZero() {
		return &MalformedEventError{EventID: e.EventID, Field: "EnqueuedAt", Reason: "enqueuedAt is required"}
	}

	if e.Kind == KindComment {
		if e.Text == "" {
			return &MalformedEventError{EventID: e.EventID, Field: "Text", Reason: validation.ErrCommentEmpty.Error()}
		}
	} else if e.Text != "" {
		return &MalformedEventError{EventID: e.EventID, Field: "Text", Reason: "text is only allowed on COMMENT events"}
	}

	return nil
}

// CommentFromEvent builds the Comment row a COMMENT event produces. The
// comment id is the event id, so a redelivered event maps to the same row.
func CommentFromEvent(e *EngagementEvent) *Comment {
	return &Comment{
		ContentID: e.ContentID,
		CommentID: e.EventID,
		UserID:    e.UserID,
		UserEmail: e.UserEmail,
		Text:      e.Text,
		CreatedAt: e.EnqueuedAt,
	}
}
