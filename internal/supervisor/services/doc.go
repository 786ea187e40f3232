// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package services provides suture.Service wrappers for components that do not
already implement Serve(ctx) themselves.

HTTPServerService translates http.Server's ListenAndServe/Shutdown pair
into a context-aware Serve. WaitFor gates ListenAndServe on a readiness
channel so submissions are refused until the event router consumes.

StoreGCService runs periodic value log GC against any GarbageCollector,
which store.BadgerStore satisfies.

The event router, the WebSocket hub, the snapshot relay and the
max-deliveries watcher implement suture.Service directly and are added to
the tree without a wrapper.

Return values follow suture conventions: ctx.Err() on requested shutdown,
a wrapped error when the component failed and should be restarted.
*/
package services
