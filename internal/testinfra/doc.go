// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to run the external services the
// pipeline can be deployed against. Every file carries the integration build
// tag, so `go test ./...` never pulls images.
//
// # PostgreSQL
//
//	func TestPostgresStore(t *testing.T) {
//	    testinfra.RequireDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.Terminate(t, pg)
//
//	    s, err := database.NewPostgresStore(ctx, pg.DSN, 10, 20)
//	    // ...
//	}
//
// # NATS
//
// NewNATSContainer starts a standalone nats-server with JetStream. The
// eventprocessor integration test runs the whole pipeline against it with
// the embedded server disabled.
//
// Run with:
//
//	go test -tags integration ./...
package testinfra
