// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package config loads Engagecast configuration with koanf v2.
//
// Sources, lowest to highest priority: built-in defaults, an optional YAML
// file (CONFIG_PATH, ./config.yaml, /etc/engagecast/config.yaml) and
// environment variables. Only the environment variables listed in
// envMappings are read.
//
// Example config.yaml:
//
//	server:
//	  port: 8080
//	store:
//	  backend: duckdb
//	  duckdb_path: /data/engagement.duckdb
//	queue:
//	  backend: nats
//	  url: nats://nats:4222
//	  embedded_server: false
//	  ack_wait: 30s
//	  max_deliver: 10
//	processor:
//	  workers: 8
//	  max_attempts: 5
//
// Common environment variables:
//
//	HTTP_PORT, ENVIRONMENT, LOG_LEVEL, LOG_FORMAT
//	AUTH_MODE (jwt|none), JWT_SECRET
//	STORE_BACKEND (badger|duckdb|postgres), BADGER_DIR, DUCKDB_PATH, DATABASE_URL
//	QUEUE_BACKEND (nats|memory), NATS_URL, NATS_EMBEDDED, NATS_ACK_WAIT, NATS_MAX_DELIVER
//	PROCESSOR_WORKERS, PROCESSOR_MAX_ATTEMPTS, PROCESSOR_RETRY_COUNT
//
// Validate enforces cross-section rules, notably that
// processor.max_attempts is below queue.max_deliver so events are
// dead-lettered before JetStream stops redelivering them.
package config
