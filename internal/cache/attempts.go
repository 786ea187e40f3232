// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cache

import "time"

// AttemptTracker counts failed processing attempts per event ID.
//
// Counts live only in this process. An entry is dropped on success, on
// eviction, or when it has not been touched for the TTL, after which the
// next failure starts again from one. Queue-side delivery limits stay the
// hard backstop.
type AttemptTracker struct {
	lru *LRU[int]
}

// NewAttemptTracker creates a tracker holding at most capacity event IDs.
func NewAttemptTracker(capacity int, ttl time.Duration) *AttemptTracker {
	return &AttemptTracker{lru: NewLRU[int](capacity, ttl)}
}

// Fail records one failed attempt and returns the running count.
func (t *AttemptTracker) Fail(eventID string) int {
	return t.lru.Update(eventID, func(n int, _ bool) int { return n + 1 })
}

// Attempts returns the failed attempts recorded for eventID.
func (t *AttemptTracker) Attempts(eventID string) int {
	n, _ := t.lru.Get(eventID)
	return n
}

// Done forgets eventID once it has been processed or dead-lettered.
func (t *AttemptTracker) Done(eventID string) {
	t.lru.Remove(eventID)
}

// Len returns the number of tracked event IDs.
func (t *AttemptTracker) Len() int {
	return t.lru.Len()
}
