// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package ingest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/tomtom215/engagecast/internal/auth"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/validation"
)

// Enqueuer hands an event to the delivery queue and returns once the queue
// has durably accepted it.
type Enqueuer interface {
	Enqueue(ctx context.Context, event *models.EngagementEvent) error
}

// SnapshotReader reads current counters for the informational snapshot on a
// receipt.
type SnapshotReader interface {
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
}

// Service accepts engagement submissions. It is stateless: it verifies the
// caller, validates the payload and enqueues one event per call.
type Service struct {
	verifier         auth.Verifier
	enqueuer         Enqueuer
	reader           SnapshotReader
	sanitizer        *bluemonday.Policy
	maxCommentLength int
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshotReader attaches current counters to every receipt.
func WithSnapshotReader(r SnapshotReader) Option {
	return func(s *Service) { s.reader = r }
}

// WithMaxCommentLength overrides the comment length limit in runes. Values
// outside 1..validation.MaxCommentLength are ignored.
func WithMaxCommentLength(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= validation.MaxCommentLength {
			s.maxCommentLength = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(verifier auth.Verifier, enqueuer Enqueuer, opts ...Option) *Service {
	s := &Service{
		verifier:         verifier,
		enqueuer:         enqueuer,
		sanitizer:        bluemonday.StrictPolicy(),
		maxCommentLength: validation.MaxCommentLength,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitLike records that the caller likes contentID.
func (s *Service) SubmitLike(ctx context.Context, credential, contentID string) (*models.Receipt, error) {
	return s.submit(ctx, models.KindLike, credential, contentID, "")
}

// SubmitUnlike withdraws the caller's like on contentID.
func (s *Service) SubmitUnlike(ctx context.Context, credential, contentID string) (*models.Receipt, error) {
	return s.submit(ctx, models.KindUnlike, credential, contentID, "")
}

// SubmitComment adds a comment. HTML is stripped from text before it is
// validated.
func (s *Service) SubmitComment(ctx context.Context, credential, contentID, text string) (*models.Receipt, error) {
	return s.submit(ctx, models.KindComment, credential, contentID, text)
}

// SubmitView records that the caller viewed contentID.
func (s *Service) SubmitView(ctx context.Context, credential, contentID string) (*models.Receipt, error) {
	return s.submit(ctx, models.KindView, credential, contentID, "")
}

func (s *Service) submit(ctx context.Context, kind models.EventKind, credential, contentID, text string) (*models.Receipt, error) {
	receipt, err := s.accept(ctx, kind, credential, contentID, text)
	metrics.RecordIngest(kind.String(), resultOf(err))
	return receipt, err
}

func (s *Service) accept(ctx context.Context, kind models.EventKind, credential, contentID, text string) (*models.Receipt, error) {
	caller, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		if !models.IsAuthError(err) {
			err = &models.AuthError{Reason: "verification failed", Err: err}
		}
		return nil, err
	}

	if !validation.ValidContentID(contentID) {
		return nil, &models.ValidationError{
			Field:   "contentId",
			Message: fmt.Sprintf("must be 1-%d characters without '.', '*', '>', '/' or whitespace", validation.MaxContentIDLength),
		}
	}

	event := &models.EngagementEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		ContentID:  contentID,
		UserID:     caller.UserID,
		EnqueuedAt: s.now().UTC(),
	}
	if kind == models.KindComment {
		clean, err := s.cleanComment(text)
		if err != nil {
			return nil, err
		}
		event.Text = clean
		event.UserEmail = caller.Email
	}

	if err := event.Validate(); err != nil {
		return nil, toValidationError(err)
	}

	if err := s.enqueuer.Enqueue(ctx, event); err != nil {
		if models.IsMalformedEvent(err) {
			return nil, toValidationError(err)
		}
		if !models.IsServiceUnavailable(err) {
			err = &models.ServiceUnavailableError{Reason: "enqueue failed", Err: err}
		}
		logging.Ctx(ctx).Warn().Err(err).
			Str("kind", kind.String()).
			Str("content_id", contentID).
			Msg("Engagement event not accepted")
		return nil, err
	}

	logging.Ctx(ctx).Debug().
		Str("event_id", event.EventID).
		Str("kind", kind.String()).
		Str("content_id", contentID).
		Str("user_id", caller.UserID).
		Msg("Engagement event accepted")

	receipt := &models.Receipt{
		EventID:    event.EventID,
		Kind:       kind,
		ContentID:  contentID,
		AcceptedAt: event.EnqueuedAt,
	}
	if s.reader != nil {
		item, err := s.reader.GetContent(ctx, contentID)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("content_id", contentID).Msg("Receipt snapshot unavailable")
		} else {
			snap := item.Snapshot(s.now().UTC())
			receipt.Snapshot = &snap
		}
	}
	return receipt, nil
}

// cleanComment strips markup, restores plain-text entities and trims.
func (s *Service) cleanComment(text string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
	if clean == "" {
		return "", &models.ValidationError{Field: "text", Message: validation.ErrCommentEmpty.Error()}
	}
	if utf8.RuneCountInString(clean) > s.maxCommentLength {
		return "", &models.ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("comment text must be at most %d characters", s.maxCommentLength),
		}
	}
	return clean, nil
}

func toValidationError(err error) error {
	var malformed *models.MalformedEventError
	if errors.As(err, &malformed) {
		return &models.ValidationError{Field: malformed.Field, Message: malformed.Reason}
	}
	return &models.ValidationError{Message: err.Error()}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case models.IsAuthError(err):
		return "auth_error"
	case models.IsValidationError(err):
		return "validation_error"
	case models.IsServiceUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
