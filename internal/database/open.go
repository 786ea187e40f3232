// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"

	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/store"
)

const schemaTimeout = 30 * time.Second

// Open builds the aggregate store selected by cfg.Backend and wraps it with
// Prometheus instrumentation.
func Open(ctx context.Context, cfg config.StoreConfig) (store.AggregateStore, error) {
	var (
		s   store.AggregateStore
		err error
	)

	switch cfg.Backend {
	case "badger":
		s, err = store.NewBadgerStore(store.BadgerOptions{
			Dir:             cfg.BadgerDir,
			InMemory:        cfg.BadgerInMemory,
			ConflictRetries: cfg.ConflictRetries,
		})
	case "duckdb":
		s, err = NewDuckDBStore(ctx, cfg.DuckDBPath, cfg.ConflictRetries)
	case "postgres":
		s, err = NewPostgresStore(ctx, cfg.PostgresURL, cfg.PostgresMaxConns, cfg.ConflictRetries)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return store.Instrument(s, cfg.Backend), nil
}

// NewDuckDBStore opens an embedded DuckDB aggregate store. An empty path or
// ":memory:" opens an in-memory database.
func NewDuckDBStore(ctx context.Context, path string, conflictRetries int) (*SQLStore, error) {
	dsn := ""
	if path != "" && path != ":memory:" {
		// Ensure parent directory exists for database file
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
		// Disable auto-install/auto-load to prevent hangs in restricted network environments
		dsn = path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(runtime.NumCPU())
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()
	if err := applyEmbeddedSchema(schemaCtx, db); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("DuckDB aggregate store opened")
	return newSQLStore(db, DialectDuckDB, conflictRetries), nil
}

// NewPostgresStore connects to PostgreSQL and applies pending migrations.
func NewPostgresStore(ctx context.Context, databaseURL string, maxConns, conflictRetries int) (*SQLStore, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	// sql.Open does not connect; Ping below verifies the server.
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(maxConns/2, 1))
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Info().Int("max_conns", maxConns).Msg("PostgreSQL aggregate store connected")
	return newSQLStore(db, DialectPostgres, conflictRetries), nil
}
