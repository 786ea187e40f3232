// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

// ContentRequest identifies one content item from the URL path.
type ContentRequest struct {
	ContentID string `validate:"required,contentid"`
}

// CommentRequest is the body of POST /content/{contentID}/comments. Text is
// sanitized and length-checked by the ingestion service.
type CommentRequest struct {
	Text string `json:"text"`
}

// CommentsQuery is GET /content/{contentID}/comments. A zero Limit selects
// the default; values above the maximum are clamped.
type CommentsQuery struct {
	ContentID string `validate:"required,contentid"`
	Limit     int    `validate:"gte=0"`
}

// DLQQuery is GET /admin/dlq.
type DLQQuery struct {
	Limit int `validate:"gte=0,lte=1000"`
}

// ReconcileQuery is GET /admin/drift and POST /admin/reconcile. An empty
// list selects every known content item.
type ReconcileQuery struct {
	ContentIDs []string `validate:"max=100,dive,contentid"`
}
