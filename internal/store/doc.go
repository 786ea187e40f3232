// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package store defines the aggregate store contract and the embedded Badger
backend.

# Contract

AggregateStore exposes conditional insert and delete for like, view and
comment rows, an atomic counter adjustment floored at zero, point reads and
per-content enumeration. The ApplyX methods combine a conditional write with
its counter change in a single transaction and return OutcomeApplied or
OutcomeDuplicate. The event processor only uses ApplyX; the bare primitives
exist for tools and for backends that are composed from them.

Counters are never maintained with read-modify-write outside a transaction.
Badger uses serializable transactions retried on conflict. The SQL backends
in internal/database use INSERT ... ON CONFLICT DO NOTHING and
UPDATE ... RETURNING.

# Key Layout (Badger)

	c/<contentId>                               content record (JSON)
	l/<contentId>/<userId>                      like relation, created time
	v/<contentId>/<userId>                      view record, first view time
	m/<contentId>/<inverted-ts>/<commentId>     comment (JSON), newest first
	mi/<contentId>/<commentId>                  comment index -> m/ key

# Errors

Failures worth retrying are wrapped in TransientError and match
errors.Is(err, ErrTransient). Everything else is returned as is.

# Reconciliation

Reconcile recounts rows per content id and rewrites counters that disagree.
It backs the engagectl reconcile command.

# Testing

storetest.Run exercises any AggregateStore against the convergence
properties of the pipeline. Every backend's tests call it.
*/
package store
