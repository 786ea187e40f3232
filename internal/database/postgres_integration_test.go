// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

//go:build integration

package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/tomtom215/engagecast/internal/store"
	"github.com/tomtom215/engagecast/internal/store/storetest"
	"github.com/tomtom215/engagecast/internal/testinfra"
)

func TestPostgresStore_Behavior(t *testing.T) {
	testinfra.RequireDocker(t)

	ctx := context.Background()
	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	testinfra.Terminate(t, pg)

	// Each subtest gets a clean schema; migrations run once per store.
	n := 0
	storetest.Run(t, func(t *testing.T) store.AggregateStore {
		t.Helper()
		n++
		schema := fmt.Sprintf("t%d", n)

		admin, err := NewPostgresStore(ctx, pg.DSN, 2, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := admin.DB().ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
			t.Fatal(err)
		}
		_ = admin.Close()

		s, err := NewPostgresStore(ctx, pg.DSN+"&search_path="+schema, 10, 50)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPostgresStore_MigrationsIdempotent(t *testing.T) {
	testinfra.RequireDocker(t)

	ctx := context.Background()
	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	testinfra.Terminate(t, pg)

	if err := RunMigrations(pg.DSN); err != nil {
		t.Fatalf("first RunMigrations() = %v", err)
	}
	if err := RunMigrations(pg.DSN); err != nil {
		t.Errorf("second RunMigrations() = %v", err)
	}
}
