// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const testEventID = "6f1c2a9e-8b7d-4c3e-9a1f-2b3c4d5e6f70"

func validEvent(kind EventKind) *EngagementEvent {
	e := &EngagementEvent{
		EventID:    testEventID,
		Kind:       kind,
		ContentID:  "vid-1",
		UserID:     "u1",
		EnqueuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if kind == KindComment {
		e.Text = "hi"
	}
	return e
}

func TestEngagementEvent_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(e *EngagementEvent)
		kind      EventKind
		wantField string
	}{
		{name: "like ok", kind: KindLike},
		{name: "unlike ok", kind: KindUnlike},
		{name: "view ok", kind: KindView},
		{name: "comment ok", kind: KindComment},
		{name: "comment with email", kind: KindComment, mutate: func(e *EngagementEvent) { e.UserEmail = "a@example.com" }},
		{name: "missing event id", kind: KindLike, mutate: func(e *EngagementEvent) { e.EventID = "" }, wantField: "EventID"},
		{name: "non uuid event id", kind: KindLike, mutate: func(e *EngagementEvent) { e.EventID = "abc" }, wantField: "EventID"},
		{name: "unknown kind", kind: KindLike, mutate: func(e *EngagementEvent) { e.Kind = "SHARE" }, wantField: "Kind"},
		{name: "missing content", kind: KindLike, mutate: func(e *EngagementEvent) { e.ContentID = "" }, wantField: "ContentID"},
		{name: "content with dot", kind: KindView, mutate: func(e *EngagementEvent) { e.ContentID = "a.b" }, wantField: "ContentID"},
		{name: "missing user", kind: KindView, mutate: func(e *EngagementEvent) { e.UserID = "" }, wantField: "UserID"},
		{name: "comment blank text", kind: KindComment, mutate: func(e *EngagementEvent) { e.Text = "   " }, wantField: "Text"},
		{name: "comment missing text", kind: KindComment, mutate: func(e *EngagementEvent) { e.Text = "" }, wantField: "Text"},
		{name: "comment too long", kind: KindComment, mutate: func(e *EngagementEvent) { e.Text = strings.Repeat("a", 1001) }, wantField: "Text"},
		{name: "text on like", kind: KindLike, mutate: func(e *EngagementEvent) { e.Text = "x" }, wantField: "Text"},
		{name: "bad email", kind: KindComment, mutate: func(e *EngagementEvent) { e.UserEmail = "nope" }, wantField: "UserEmail"},
		{name: "missing enqueued at", kind: KindUnlike, mutate: func(e *EngagementEvent) { e.EnqueuedAt = time.Time{} }, wantField: "EnqueuedAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := validEvent(tt.kind)
			if tt.mutate != nil {
				tt.mutate(e)
			}
			err := e.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var merr *MalformedEventError
			if !errors.As(err, &merr) {
				t.Fatalf("Validate() = %v, want *MalformedEventError", err)
			}
			if merr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", merr.Field, tt.wantField)
			}
		})
	}
}

func TestEventKind_Valid(t *testing.T) {
	t.Parallel()

	for _, k := range AllKinds {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if EventKind("like").Valid() {
		t.Error("kinds are case sensitive")
	}
}

func TestCommentFromEvent(t *testing.T) {
	t.Parallel()

	e := validEvent(KindComment)
	e.UserEmail = "u1@example.com"
	c := CommentFromEvent(e)

	if c.CommentID != e.EventID {
		t.Errorf("CommentID = %q, want event id", c.CommentID)
	}
	if c.ContentID != "vid-1" || c.UserID != "u1" || c.Text != "hi" || c.UserEmail != "u1@example.com" {
		t.Errorf("unexpected comment: %+v", c)
	}
	if !c.CreatedAt.Equal(e.EnqueuedAt) {
		t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, e.EnqueuedAt)
	}
}

func TestContentItem_Counters(t *testing.T) {
	t.Parallel()

	item := &ContentItem{ContentID: "vid-1"}
	item.SetCounter(FieldLikeCount, 3)
	item.SetCounter(FieldCommentCount, 2)
	item.SetCounter(FieldViewCount, -4)

	if item.Counter(FieldLikeCount) != 3 || item.Counter(FieldCommentCount) != 2 {
		t.Errorf("unexpected counters: %+v", item)
	}
	if item.ViewCount != 0 {
		t.Errorf("negative counter should floor at 0, got %d", item.ViewCount)
	}

	now := time.Now()
	snap := item.Snapshot(now)
	if snap.ContentID != "vid-1" || snap.LikeCount != 3 || snap.CommentCount != 2 || snap.ViewCount != 0 || !snap.ObservedAt.Equal(now) {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestCounterField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field  CounterField
		valid  bool
		column string
	}{
		{FieldLikeCount, true, "like_count"},
		{FieldCommentCount, true, "comment_count"},
		{FieldViewCount, true, "view_count"},
		{CounterField("shareCount"), false, ""},
	}
	for _, tt := range tests {
		if got := tt.field.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v", tt.field, got)
		}
		if got := tt.field.Column(); got != tt.column {
			t.Errorf("%s.Column() = %q", tt.field, got)
		}
	}
}

func TestSnapshot_WireFormat(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Snapshot{ContentID: "vid-1", LikeCount: 1, CommentCount: 2, ViewCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"contentId":"vid-1"`, `"likeCount":1`, `"commentCount":2`, `"viewCount":3`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("snapshot JSON missing %s: %s", key, data)
		}
	}
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"auth", &AuthError{Reason: "token expired"}, IsAuthError},
		{"validation", &ValidationError{Field: "text", Message: "empty"}, IsValidationError},
		{"unavailable", &ServiceUnavailableError{Reason: "queue", Err: cause}, IsServiceUnavailable},
		{"malformed", &MalformedEventError{Field: "Kind", Reason: "unknown"}, IsMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("submit: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("helper did not match wrapped %T", tt.err)
			}
			if tt.check(cause) {
				t.Error("helper matched an unrelated error")
			}
		})
	}

	unavailable := &ServiceUnavailableError{Reason: "queue", Err: cause}
	if !errors.Is(unavailable, cause) {
		t.Error("ServiceUnavailableError should unwrap to its cause")
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	if OutcomeApplied.String() != "applied" || OutcomeDuplicate.String() != "duplicate" {
		t.Error("unexpected outcome strings")
	}
}
