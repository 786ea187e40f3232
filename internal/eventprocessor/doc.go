// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package eventprocessor is the delivery queue and event processor of the
// engagement pipeline, built on Watermill.
//
// # Flow
//
//	ingest ──Enqueue──▶ engagement.events ──▶ Router ──▶ EngagementHandler ──▶ store
//	                         (JetStream)        │                 │
//	                                            │                 └─▶ Broadcaster ──▶ hubs
//	                                            ▼
//	                                     engagement.dlq ──▶ DLQConsumer
//
// Enqueue returns only after the queue accepted the event; every failure is
// a models.ServiceUnavailableError, and a circuit breaker sheds load while
// the broker is down.
//
// # Delivery
//
// Delivery is at least once. An unacknowledged message becomes visible
// again after AckWait, so handlers must be idempotent. EngagementHandler
// holds no state of its own: it calls store.ApplyEvent, whose conditional
// primitives suppress duplicates by event id.
//
// Failures are classified by the Router middleware chain:
//
//   - PermanentError (malformed payloads): acked and dead-lettered at once.
//   - RetryableError: retried in place with backoff, then nacked. After
//     MaxAttempts failed deliveries the event is dead-lettered as exhausted.
//
// Deliveries the router never sees fail (for example across restarts) are
// caught by MaxDeliveriesWatcher, which listens to JetStream's
// MAX_DELIVERIES advisories.
//
// # Backends
//
// The nats backend uses JetStream (optionally an embedded server) for the
// events and dead-letter subjects, and core NATS for the snapshot fan-out
// so every node's hub sees every applied mutation. The memory backend uses
// a Watermill GoChannel; it is not durable and is meant for tests and
// single-node development.
//
// # Usage
//
//	settings := eventprocessor.SettingsFromConfig(cfg.Queue, cfg.Processor)
//	pipeline, err := eventprocessor.NewPipeline(ctx, settings, store, hub)
//	if err != nil {
//	    return err
//	}
//	defer pipeline.Close()
//
//	go pipeline.Router.Run(ctx)
//	<-pipeline.Running()
//	err = pipeline.Enqueuer.Enqueue(ctx, event)
package eventprocessor
