// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/engagecast/internal/models"
)

// DefaultCommentLimit and MaxCommentLimit bound ListComments.
const (
	DefaultCommentLimit = 100
	MaxCommentLimit     = 100
)

// Primitives are the conditional and atomic operations every backend exposes.
// Conditional operations report whether they changed anything; they never
// emulate the condition with a separate read.
//
// A like relation is a last-writer-wins register per (contentID, userID)
// ordered by event time. An unlike leaves a tombstone, so a like that is
// delivered after a newer unlike stays suppressed and any delivery order of
// the same events converges to the same relation set.
type Primitives interface {
	// InsertLike creates the (contentID, userID) relation if absent and no
	// unlike newer than at has been recorded for the pair.
	InsertLike(ctx context.Context, contentID, userID string, at time.Time) (bool, error)
	// DeleteLike removes the (contentID, userID) relation if present and
	// older than at, leaving a tombstone stamped with at.
	DeleteLike(ctx context.Context, contentID, userID string, at time.Time) (bool, error)
	// InsertComment stores c keyed by its CommentID if absent.
	InsertComment(ctx context.Context, c *models.Comment) (bool, error)
	// InsertView records the first view of contentID by userID.
	InsertView(ctx context.Context, contentID, userID string, at time.Time) (bool, error)
	// IncrementCounter adds delta to field and returns the new value. The
	// result is floored at zero.
	IncrementCounter(ctx context.Context, contentID string, field models.CounterField, delta int64) (int64, error)
}

// AggregateStore is the persistent state of the engagement pipeline.
type AggregateStore interface {
	Primitives

	// ApplyLike, ApplyUnlike, ApplyComment and ApplyView commit the relation
	// write and the matching counter change in one transaction.
	ApplyLike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error)
	ApplyUnlike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error)
	ApplyComment(ctx context.Context, c *models.Comment) (models.Outcome, error)
	ApplyView(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error)

	// GetContent returns the item with zero counters when it has never been
	// touched.
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
	PutContent(ctx context.Context, item *models.ContentItem) error
	SetCounters(ctx context.Context, contentID string, likes, comments, views int64) error

	ListLikes(ctx context.Context, contentID string) ([]models.LikeRelation, error)
	ListViews(ctx context.Context, contentID string) ([]models.ViewRecord, error)
	// ListComments returns comments newest first. The limit is normalized
	// with ClampCommentLimit; AllComments returns every row.
	ListComments(ctx context.Context, contentID string, limit int) ([]models.Comment, error)
	CountComments(ctx context.Context, contentID string) (int64, error)
	ListContentIDs(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// AllComments asks ListComments for every row. Used by reconciliation.
const AllComments = -1

// ClampCommentLimit normalizes a caller-supplied comment limit.
func ClampCommentLimit(limit int) int {
	switch {
	case limit == AllComments:
		return AllComments
	case limit <= 0:
		return DefaultCommentLimit
	case limit > MaxCommentLimit:
		return MaxCommentLimit
	default:
		return limit
	}
}

var (
	// ErrTransient marks failures that may succeed on redelivery.
	ErrTransient = errors.New("transient store error")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")

	// ErrInvalidField is returned for an unknown counter field.
	ErrInvalidField = errors.New("invalid counter field")
)

// TransientError wraps a backend error that is worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransient) true for every TransientError.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// Transient wraps err as a TransientError. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}
