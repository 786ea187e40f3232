// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package main is the entry point for the Engagecast server.

Engagecast accepts likes, unlikes, comments and views over HTTP, queues them
on a durable delivery queue, applies them idempotently to an aggregate store
and pushes the resulting counters to WebSocket subscribers.

# Application Architecture

	RootSupervisor ("engagecast")
	├── DataSupervisor ("data-layer")
	│   └── Store GC (STORE_BACKEND=badger)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Engagement router (Watermill over JetStream or Go channels)
	│   ├── Max-deliveries watcher (QUEUE_BACKEND=nats)
	│   ├── WebSocket hub
	│   └── Snapshot subscriber (QUEUE_BACKEND=nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server (starts once the router consumes)

Initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Aggregate store: Badger, DuckDB or PostgreSQL, Prometheus-instrumented
 3. WebSocket hub with the store as cold-read source
 4. Event pipeline: embedded or external NATS JetStream, or in-memory
 5. Caller verification: HS256 JWT or AUTH_MODE=none
 6. Chi router and the supervisor tree

# Configuration

Common environment variables:

	STORE_BACKEND=badger|duckdb|postgres
	QUEUE_BACKEND=nats|memory
	NATS_URL, NATS_EMBEDDED
	AUTH_MODE=jwt|none, JWT_SECRET
	ADMIN_USERS=ops-alice,ops-bob
	HTTP_PORT

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT, the router finishes in-flight events, then the
queue connection and the store are closed.
*/
package main
