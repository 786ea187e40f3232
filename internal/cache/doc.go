// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package cache provides bounded in-memory structures used on the hot path.

# LRU

LRU is a generic least recently used cache with TTL expiration:

	snapshots := cache.NewLRU[models.Snapshot](4096, 10*time.Minute)
	snapshots.Add(contentID, snap)
	if s, ok := snapshots.Get(contentID); ok {
	    // replay to a new subscriber
	}

The WebSocket hub keeps the latest snapshot per content item in one so a
client that subscribes between mutations gets current counts immediately.

# AttemptTracker

AttemptTracker counts failed processing attempts per event ID. The event
router consults it to decide when an event has exhausted its attempts and
must be dead-lettered:

	n := tracker.Fail(eventID)
	if n >= maxAttempts {
	    // route to the DLQ
	}
	tracker.Done(eventID) // on success

# Thread Safety

All types are safe for concurrent use.
*/
package cache
