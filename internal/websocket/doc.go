// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package websocket is the broadcast service: it pushes engagement snapshots
to WebSocket subscribers of a content item.

The Hub keeps one channel per content id. A Client joins a channel when it
connects to /api/v1/content/{contentID}/subscribe and may join or leave
others with control messages:

	{"type":"subscribe","content_id":"video-2"}
	{"type":"unsubscribe","content_id":"video-2"}
	{"type":"ping"}

Control messages are rate limited per connection with golang.org/x/time/rate.
On every subscribe the hub queues the current counters (a cold read through
SnapshotReader) so a reconnecting client resumes from current state.

Outbound frames:

	{"type":"subscribed","content_id":"video-1"}
	{"type":"snapshot","content_id":"video-1","data":{"contentId":"video-1","likeCount":3,...}}
	{"type":"error","content_id":"x","data":{"code":"INVALID_CONTENT_ID","message":"..."}}

Fan-out:

	processor ──Publish──► Hub.broadcast ──Run──► channel[contentID] ──► Client.send ──► writePump

Publish never blocks on clients. A client whose send buffer is full is
disconnected and must reconnect, which resends the current snapshot.

In a multi-node deployment each processor publishes snapshots to a core NATS
topic; every node runs a SnapshotSubscriber that forwards them to its local
hub. In the memory backend the processor publishes to the hub directly.

Snapshots are not ordered across workers. A subscriber may briefly see an
older snapshot after a newer one; the next change or a resubscribe corrects
it. ObservedAt is carried for diagnostics.

Usage:

	hub := websocket.NewHub(websocket.ConfigFromBroadcast(cfg.Broadcast), st)
	go hub.Run(ctx)

	r.Get("/api/v1/content/{contentID}/subscribe", func(w http.ResponseWriter, r *http.Request) {
	    hub.ServeWS(ctx, w, r, chi.URLParam(r, "contentID"))
	})
*/
package websocket
