// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package ingest accepts likes, unlikes, comments and views and hands them
// to the delivery queue. A receipt means the queue durably accepted the
// event, not that counters changed.
package ingest
