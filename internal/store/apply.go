// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/engagecast/internal/models"
)

// ApplyEvent runs the state transition for one validated event.
//
//	LIKE     insert like relation; +1 likeCount when inserted
//	UNLIKE   delete like relation; -1 likeCount when deleted
//	COMMENT  insert comment keyed by EventID; +1 commentCount when inserted
//	VIEW     insert view record; +1 viewCount when inserted
//
// Anything that changed nothing is OutcomeDuplicate.
func ApplyEvent(ctx context.Context, s AggregateStore, e *models.EngagementEvent) (models.Outcome, error) {
	switch e.Kind {
	case models.KindLike:
		return s.ApplyLike(ctx, e.ContentID, e.UserID, e.EnqueuedAt)
	case models.KindUnlike:
		return s.ApplyUnlike(ctx, e.ContentID, e.UserID, e.EnqueuedAt)
	case models.KindComment:
		return s.ApplyComment(ctx, models.CommentFromEvent(e))
	case models.KindView:
		return s.ApplyView(ctx, e.ContentID, e.UserID, e.EnqueuedAt)
	default:
		return models.OutcomeDuplicate, &models.MalformedEventError{
			EventID: e.EventID,
			Field:   "Kind",
			Reason:  fmt.Sprintf("unknown event kind %q", e.Kind),
		}
	}
}
