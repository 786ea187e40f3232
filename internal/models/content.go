// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package models

import (
	"time"
)

// ContentStatus is the media pipeline's lifecycle state for an item. The
// engagement core stores it but never acts on it.
type ContentStatus string

const (
	StatusUnknown    ContentStatus = ""
	StatusProcessing ContentStatus = "processing"
	StatusReady      ContentStatus = "ready"
	StatusFailed     ContentStatus = "failed"
)

// ContentItem holds the aggregate counters for one content id.
//
// Counters are derived state. After quiescence:
//
//	LikeCount    == number of LikeRelation rows for ContentID
//	CommentCount == number of Comment rows for ContentID
//	ViewCount    == number of ViewRecord rows for ContentID
type ContentItem struct {
	ContentID    string        `json:"contentId"`
	OwnerID      string        `json:"ownerId,omitempty"`
	Status       ContentStatus `json:"status,omitempty"`
	LikeCount    int64         `json:"likeCount"`
	CommentCount int64         `json:"commentCount"`
	ViewCount    int64         `json:"viewCount"`
	UpdatedAt    time.Time     `json:"updatedAt,omitempty"`
}

// Snapshot returns the broadcastable view of the item's counters.
func (c *ContentItem) Snapshot(observedAt time.Time) Snapshot {
	return Snapshot{
		ContentID:    c.ContentID,
		LikeCount:    c.LikeCount,
		CommentCount: c.CommentCount,
		ViewCount:    c.ViewCount,
		ObservedAt:   observedAt,
	}
}

// Counter returns the value of field.
func (c *ContentItem) Counter(field CounterField) int64 {
	switch field {
	case FieldLikeCount:
		return c.LikeCount
	case FieldCommentCount:
		return c.CommentCount
	case FieldViewCount:
		return c.ViewCount
	default:
		return 0
	}
}

// SetCounter assigns field, flooring at zero.
func (c *ContentItem) SetCounter(field CounterField, v int64) {
	if v < 0 {
		v = 0
	}
	switch field {
	case FieldLikeCount:
		c.LikeCount = v
	case FieldCommentCount:
		c.CommentCount = v
	case FieldViewCount:
		c.ViewCount = v
	}
}

// CounterField names one of the three aggregate counters.
type CounterField string

const (
	FieldLikeCount    CounterField = "likeCount"
	FieldCommentCount CounterField = "commentCount"
	FieldViewCount    CounterField = "viewCount"
)

// Valid reports whether f is a known counter.
func (f CounterField) Valid() bool {
	return f == FieldLikeCount || f == FieldCommentCount || f == FieldViewCount
}

// Column returns the SQL column backing f.
func (f CounterField) Column() string {
	switch f {
	case FieldLikeCount:
		return "like_count"
	case FieldCommentCount:
		return "comment_count"
	case FieldViewCount:
		return "view_count"
	default:
		return ""
	}
}

// Snapshot is the current aggregate state of one content item, as published
// to subscribers. It is always absolute, never a delta. ObservedAt is when
// the processor read it back; it is diagnostic only and carries no ordering
// guarantee between snapshots.
type Snapshot struct {
	ContentID    string    `json:"contentId"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
	ViewCount    int64     `json:"viewCount"`
	ObservedAt   time.Time `json:"observedAt"`
}

// LikeRelation records that UserID currently likes ContentID.
type LikeRelation struct {
	ContentID string    `json:"contentId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ViewRecord records the first view of ContentID by UserID.
type ViewRecord struct {
	ContentID     string    `json:"contentId"`
	UserID        string    `json:"userId"`
	FirstViewedAt time.Time `json:"firstViewedAt"`
}

// Comment is an append-only comment row. CommentID equals the EventID of
// the COMMENT event that created it.
type Comment struct {
	ContentID string    `json:"contentId"`
	CommentID string    `json:"commentId"`
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Outcome is the result of applying one engagement event.
type Outcome int

const (
	// OutcomeApplied means the store changed and a snapshot should be broadcast.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the event was already reflected in the store
	// (duplicate delivery, repeated like, unlike of an absent like, repeat view).
	// It is a successful outcome, not an error.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
