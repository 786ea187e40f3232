// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package logging provides zerolog-based structured logging for Engagecast.
//
// A single global logger is configured once at startup:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("content_id", id).Msg("like accepted")
//
// Request-scoped fields travel on the context. The API middleware stores the
// request id and the event processor stores the engagement event id as the
// correlation id, so one event can be followed from the HTTP handler through
// every redelivery:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("queue unavailable")
//
// Libraries that expect log/slog (suture, Watermill) are given
// NewSlogLogger, which writes through the same zerolog output.
//
// EventLogger adds helpers for the processor's event lifecycle messages.
package logging
