// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/store"
	"github.com/tomtom215/engagecast/internal/store/storetest"
)

func init() {
	logging.SetOutput(io.Discard)
}

func newDuckDB(t *testing.T) store.AggregateStore {
	t.Helper()
	s, err := NewDuckDBStore(context.Background(), "", 200)
	if err != nil {
		t.Fatalf("NewDuckDBStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDuckDBStore_Behavior(t *testing.T) {
	storetest.Run(t, newDuckDB)
}

func TestDuckDBStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engagecast.duckdb")
	ctx := context.Background()

	s, err := NewDuckDBStore(ctx, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyView(ctx, "c1", "u1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewDuckDBStore(ctx, path, 0)
	if err != nil {
		t.Fatalf("reopen with existing schema: %v", err)
	}
	defer reopened.Close()

	item, err := reopened.GetContent(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if item.ViewCount != 1 {
		t.Errorf("ViewCount after reopen = %d, want 1", item.ViewCount)
	}
	if reopened.Dialect() != DialectDuckDB {
		t.Errorf("Dialect() = %q", reopened.Dialect())
	}
}

func TestSQLStore_Closed(t *testing.T) {
	s, err := NewDuckDBStore(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	if _, err := s.ApplyLike(context.Background(), "c1", "u1", time.Now()); !errors.Is(err, store.ErrClosed) {
		t.Errorf("ApplyLike after Close = %v, want ErrClosed", err)
	}
	if _, err := s.GetContent(context.Background(), "c1"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("GetContent after Close = %v, want ErrClosed", err)
	}
}

func TestOpen_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(dir string) config.StoreConfig
		wantErr bool
	}{
		{"badger in memory", func(string) config.StoreConfig {
			return config.StoreConfig{Backend: "badger", BadgerInMemory: true}
		}, false},
		{"badger on disk", func(dir string) config.StoreConfig {
			return config.StoreConfig{Backend: "badger", BadgerDir: filepath.Join(dir, "badger")}
		}, false},
		{"duckdb", func(dir string) config.StoreConfig {
			return config.StoreConfig{Backend: "duckdb", DuckDBPath: filepath.Join(dir, "e.duckdb")}
		}, false},
		{"unknown", func(string) config.StoreConfig {
			return config.StoreConfig{Backend: "cassandra"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(context.Background(), tt.cfg(t.TempDir()))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()

			if err := s.Ping(context.Background()); err != nil {
				t.Errorf("Ping() = %v", err)
			}
			if _, ok := s.(*store.Instrumented); !ok {
				t.Errorf("Open() returned %T, want *store.Instrumented", s)
			}
		})
	}
}
