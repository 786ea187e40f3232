// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package database provides the SQL aggregate store backends and the store
factory.

# Backends

SQLStore implements store.AggregateStore on two engines:

  - DuckDB (duckdb-go): embedded, single file or in-memory
  - PostgreSQL (lib/pq): shared by every node of a multi-node deployment

Both run the same statements. Relation writes use
INSERT ... ON CONFLICT DO NOTHING and guarded UPDATEs; the affected row count
is the outcome. Counters use

	UPDATE content SET like_count = GREATEST(like_count + $2, 0) ... RETURNING like_count

inside the same transaction as the relation write.

# Schema

The schema lives in migrations/ and is embedded. PostgreSQL applies it with
golang-migrate (iofs source). DuckDB executes the up files directly at open;
every statement is CREATE ... IF NOT EXISTS.

	content(content_id PK, owner_id, status, like_count, comment_count, view_count, updated_at)
	likes(content_id, user_id, liked, event_at, created_at) PK (content_id, user_id)
	views(content_id, user_id, first_viewed_at) PK (content_id, user_id)
	comments(comment_id PK, content_id, user_id, user_email, body, created_at)

Timestamps are Unix nanoseconds (BIGINT) so both engines compare them
identically.

# Errors

DuckDB optimistic concurrency conflicts and PostgreSQL serialization failures
retry the transaction in place. Lost connections and exhausted retries come
back as store.TransientError so the event is redelivered.

# Factory

Open selects badger, duckdb or postgres from config.StoreConfig and wraps the
result with store.Instrument.
*/
package database
