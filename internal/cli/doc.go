// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package cli implements the engagectl cobra commands.
//
// Store commands open the aggregate store named by the server configuration:
//
//	engagectl show <content-id>
//	engagectl comments <content-id> [--limit N]
//	engagectl reconcile [--content id]... [--dry-run] [--fail-on-drift]
//
// Server commands call a running node over HTTP:
//
//	engagectl dlq [--limit N] --server URL --token TOKEN
//
// token signs a development JWT with the configured secret. Every command
// honours --format json, which wraps results in {"status": "ok", "data": ...}.
// Exit codes: 0 success, 1 drift or a refused request, 2 command errors.
package cli
