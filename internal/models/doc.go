// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package models defines the data structures shared across Engagecast.

Key Components:

  - EngagementEvent: the queued unit (LIKE, UNLIKE, COMMENT, VIEW) with its
    idempotency key EventID
  - ContentItem: aggregate counters for one content id
  - LikeRelation, ViewRecord, Comment: the relation rows the counters are
    derived from
  - Snapshot: absolute counter state published to subscribers
  - Outcome: applied vs duplicate-suppressed processing result

Errors:

The caller-visible failures of ingestion are typed so the API layer can map
them to status codes with errors.As:

  - AuthError            -> 401
  - ValidationError      -> 400
  - ServiceUnavailableError -> 503 + Retry-After

MalformedEventError is processor-side only; it marks an event that will be
dead-lettered without retry.
*/
package models
