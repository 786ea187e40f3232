// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

// Dialect names the SQL engine behind a SQLStore.
type Dialect string

const (
	DialectDuckDB   Dialect = "duckdb"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements store.AggregateStore on DuckDB or PostgreSQL.
//
// Conditional writes are INSERT ... ON CONFLICT DO NOTHING and guarded
// UPDATEs whose affected row count decides the outcome. Counters move with
// UPDATE ... SET x = GREATEST(x + $2, 0) ... RETURNING x, so the database
// does the arithmetic under its own row lock.
type SQLStore struct {
	db              *sql.DB
	dialect         Dialect
	conflictRetries int
	now             func() time.Time
	closed          atomic.Bool
}

func newSQLStore(db *sql.DB, dialect Dialect, conflictRetries int) *SQLStore {
	if conflictRetries <= 0 {
		conflictRetries = 10
	}
	return &SQLStore{db: db, dialect: dialect, conflictRetries: conflictRetries, now: time.Now}
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the SQL engine in use.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isRetryable(err) {
		return store.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// withTx runs fn in a transaction, retrying the whole transaction on
// conflicts. fn must be safe to run more than once.
func (s *SQLStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	for attempt := 0; ; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil || errors.Is(err, store.ErrInvalidField) {
			return err
		}
		if !isTransactionConflict(err) || attempt >= s.conflictRetries {
			return s.classify(op, err)
		}

		metrics.StoreConflictRetries.Inc()
		backoff := time.Duration(attempt+1) * time.Millisecond
		select {
		case <-ctx.Done():
			return store.Transient(op, ctx.Err())
		case <-time.After(backoff + rand.N(backoff)):
		}
	}
}

func (s *SQLStore) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// setLiked moves the (contentID, userID) register to liked at event time
// eventAt and reports whether the relation's existence changed.
//
// The insert can lose a race with a concurrent insert of the same pair; the
// second pass then sees the row and decides with the guarded updates.
func setLiked(ctx context.Context, tx *sql.Tx, contentID, userID string, liked bool, eventAt int64) (bool, error) {
	for pass := 0; pass < 2; pass++ {
		n, err := execCount(ctx, tx,
			`UPDATE likes SET liked = $3, event_at = $4, created_at = $4
			 WHERE content_id = $1 AND user_id = $2 AND liked <> $3 AND event_at < $4`,
			contentID, userID, liked, eventAt)
		if err != nil || n == 1 {
			return n == 1, err
		}

		n, err = execCount(ctx, tx,
			`UPDATE likes SET event_at = $4
			 WHERE content_id = $1 AND user_id = $2 AND liked = $3 AND event_at < $4`,
			contentID, userID, liked, eventAt)
		if err != nil || n == 1 {
			return false, err
		}

		n, err = execCount(ctx, tx,
			`INSERT INTO likes (content_id, user_id, liked, event_at, created_at)
			 VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (content_id, user_id) DO NOTHING`,
			contentID, userID, liked, eventAt)
		if err != nil {
			return false, err
		}
		if n == 1 {
			return liked, nil
		}
	}
	// The stored event is at least as new as this one.
	return false, nil
}

func insertView(ctx context.Context, tx *sql.Tx, contentID, userID string, at int64) (bool, error) {
	n, err := execCount(ctx, tx,
		`INSERT INTO views (content_id, user_id, first_viewed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (content_id, user_id) DO NOTHING`,
		contentID, userID, at)
	return n == 1, err
}

func insertComment(ctx context.Context, tx *sql.Tx, c *models.Comment) (bool, error) {
	n, err := execCount(ctx, tx,
		`INSERT INTO comments (comment_id, content_id, user_id, user_email, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (comment_id) DO NOTHING`,
		c.CommentID, c.ContentID, c.UserID, c.UserEmail, c.Text, c.CreatedAt.UTC().UnixNano())
	return n == 1, err
}

func (s *SQLStore) adjust(ctx context.Context, tx *sql.Tx, contentID string, field models.CounterField, delta int64) (int64, error) {
	if !field.Valid() {
		return 0, fmt.Errorf("%w: %q", store.ErrInvalidField, field)
	}
	col := field.Column()
	now := s.now().UTC().UnixNano()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO content (content_id, updated_at) VALUES ($1, $2) ON CONFLICT (content_id) DO NOTHING`,
		contentID, now); err != nil {
		return 0, err
	}

	var value int64
	err := tx.QueryRowContext(ctx,
		`UPDATE content SET `+col+` = GREATEST(`+col+` + $2, 0), updated_at = $3
		 WHERE content_id = $1 RETURNING `+col,
		contentID, delta, now).Scan(&value)
	return value, err
}

func (s *SQLStore) conditional(ctx context.Context, op string, write func(tx *sql.Tx) (bool, error)) (bool, error) {
	var changed bool
	err := s.withTx(ctx, op, func(tx *sql.Tx) (err error) {
		changed, err = write(tx)
		return err
	})
	return changed, err
}

// InsertLike creates the like relation unless it exists or a newer unlike
// has been recorded.
func (s *SQLStore) InsertLike(ctx context.Context, contentID, userID string, at time.Time) (bool, error) {
	return s.conditional(ctx, "insert_like", func(tx *sql.Tx) (bool, error) {
		return setLiked(ctx, tx, contentID, userID, true, at.UTC().UnixNano())
	})
}

// DeleteLike removes the like relation if it is older than at.
func (s *SQLStore) DeleteLike(ctx context.Context, contentID, userID string, at time.Time) (bool, error) {
	return s.conditional(ctx, "delete_like", func(tx *sql.Tx) (bool, error) {
		return setLiked(ctx, tx, contentID, userID, false, at.UTC().UnixNano())
	})
}

// InsertComment stores c if its CommentID is new.
func (s *SQLStore) InsertComment(ctx context.Context, c *models.Comment) (bool, error) {
	return s.conditional(ctx, "insert_comment", func(tx *sql.Tx) (bool, error) {
		return insertComment(ctx, tx, c)
	})
}

// InsertView records a first view.
func (s *SQLStore) InsertView(ctx context.Context, contentID, userID string, at time.Time) (bool, error) {
	return s.conditional(ctx, "insert_view", func(tx *sql.Tx) (bool, error) {
		return insertView(ctx, tx, contentID, userID, at.UTC().UnixNano())
	})
}

// IncrementCounter adds delta to field, flooring at zero.
func (s *SQLStore) IncrementCounter(ctx context.Context, contentID string, field models.CounterField, delta int64) (int64, error) {
	var value int64
	err := s.withTx(ctx, "increment_counter", func(tx *sql.Tx) (err error) {
		value, err = s.adjust(ctx, tx, contentID, field, delta)
		return err
	})
	return value, err
}

func (s *SQLStore) applyRelation(ctx context.Context, op, contentID string, field models.CounterField, delta int64, write func(tx *sql.Tx) (bool, error)) (models.Outcome, error) {
	outcome := models.OutcomeDuplicate
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		outcome = models.OutcomeDuplicate
		changed, err := write(tx)
		if err != nil || !changed {
			return err
		}
		if _, err := s.adjust(ctx, tx, contentID, field, delta); err != nil {
			return err
		}
		outcome = models.OutcomeApplied
		return nil
	})
	return outcome, err
}

// ApplyLike inserts the relation and increments likeCount in one transaction.
func (s *SQLStore) ApplyLike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_like", contentID, models.FieldLikeCount, 1, func(tx *sql.Tx) (bool, error) {
		return setLiked(ctx, tx, contentID, userID, true, at.UTC().UnixNano())
	})
}

// ApplyUnlike deletes the relation and decrements likeCount in one transaction.
func (s *SQLStore) ApplyUnlike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_unlike", contentID, models.FieldLikeCount, -1, func(tx *sql.Tx) (bool, error) {
		return setLiked(ctx, tx, contentID, userID, false, at.UTC().UnixNano())
	})
}

// ApplyComment inserts the comment and increments commentCount in one transaction.
func (s *SQLStore) ApplyComment(ctx context.Context, c *models.Comment) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_comment", c.ContentID, models.FieldCommentCount, 1, func(tx *sql.Tx) (bool, error) {
		return insertComment(ctx, tx, c)
	})
}

// ApplyView inserts the view record and increments viewCount in one transaction.
func (s *SQLStore) ApplyView(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_view", contentID, models.FieldViewCount, 1, func(tx *sql.Tx) (bool, error) {
		return insertView(ctx, tx, contentID, userID, at.UTC().UnixNano())
	})
}

// GetContent returns the content row, zero-valued when absent.
func (s *SQLStore) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	item := &models.ContentItem{ContentID: contentID}
	var status string
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, status, like_count, comment_count, view_count, updated_at
		 FROM content WHERE content_id = $1`, contentID).
		Scan(&item.OwnerID, &status, &item.LikeCount, &item.CommentCount, &item.ViewCount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return item, nil
	}
	if err != nil {
		return nil, s.classify("get_content", err)
	}

	item.Status = models.ContentStatus(status)
	if updated > 0 {
		item.UpdatedAt = time.Unix(0, updated).UTC()
	}
	return item, nil
}

// PutContent upserts owner and status without touching counters.
func (s *SQLStore) PutContent(ctx context.Context, item *models.ContentItem) error {
	return s.withTx(ctx, "put_content", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO content (content_id, owner_id, status, updated_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (content_id) DO UPDATE SET owner_id = EXCLUDED.owner_id, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
			item.ContentID, item.OwnerID, string(item.Status), s.now().UTC().UnixNano())
		return err
	})
}

// SetCounters overwrites all three counters.
func (s *SQLStore) SetCounters(ctx context.Context, contentID string, likes, comments, views int64) error {
	return s.withTx(ctx, "set_counters", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO content (content_id, like_count, comment_count, view_count, updated_at) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (content_id) DO UPDATE SET like_count = EXCLUDED.like_count, comment_count = EXCLUDED.comment_count,
			 view_count = EXCLUDED.view_count, updated_at = EXCLUDED.updated_at`,
			contentID, max(likes, 0), max(comments, 0), max(views, 0), s.now().UTC().UnixNano())
		return err
	})
}

// ListLikes enumerates current like relations. Tombstones are skipped.
func (s *SQLStore) ListLikes(ctx context.Context, contentID string) ([]models.LikeRelation, error) {
	rows, err := s.query(ctx, "list_likes",
		`SELECT user_id, created_at FROM likes WHERE content_id = $1 AND liked ORDER BY user_id`, contentID)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)

	var likes []models.LikeRelation
	for rows.Next() {
		var userID string
		var created int64
		if err := rows.Scan(&userID, &created); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		likes = append(likes, models.LikeRelation{ContentID: contentID, UserID: userID, CreatedAt: time.Unix(0, created).UTC()})
	}
	return likes, s.classify("list_likes", rows.Err())
}

// ListViews enumerates view records.
func (s *SQLStore) ListViews(ctx context.Context, contentID string) ([]models.ViewRecord, error) {
	rows, err := s.query(ctx, "list_views",
		`SELECT user_id, first_viewed_at FROM views WHERE content_id = $1 ORDER BY user_id`, contentID)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)

	var views []models.ViewRecord
	for rows.Next() {
		var userID string
		var first int64
		if err := rows.Scan(&userID, &first); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		views = append(views, models.ViewRecord{ContentID: contentID, UserID: userID, FirstViewedAt: time.Unix(0, first).UTC()})
	}
	return views, s.classify("list_views", rows.Err())
}

// ListComments returns comments newest first.
func (s *SQLStore) ListComments(ctx context.Context, contentID string, limit int) ([]models.Comment, error) {
	query := `SELECT comment_id, user_id, user_email, body, created_at FROM comments
		WHERE content_id = $1 ORDER BY created_at DESC, comment_id DESC`
	args := []any{contentID}
	if limit = store.ClampCommentLimit(limit); limit != store.AllComments {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, "list_comments", query, args...)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)

	comments := []models.Comment{}
	for rows.Next() {
		c := models.Comment{ContentID: contentID}
		var created int64
		if err := rows.Scan(&c.CommentID, &c.UserID, &c.UserEmail, &c.Text, &created); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		comments = append(comments, c)
	}
	return comments, s.classify("list_comments", rows.Err())
}

// CountComments counts comment rows for contentID.
func (s *SQLStore) CountComments(ctx context.Context, contentID string) (int64, error) {
	if s.closed.Load() {
		return 0, store.ErrClosed
	}
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE content_id = $1`, contentID).Scan(&n)
	return n, s.classify("count_comments", err)
}

// ListContentIDs returns every content id with a row in any table.
func (s *SQLStore) ListContentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, "list_content_ids",
		`SELECT content_id FROM content
		 UNION SELECT content_id FROM likes
		 UNION SELECT content_id FROM views
		 UNION SELECT content_id FROM comments
		 ORDER BY content_id`)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan content id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, s.classify("list_content_ids", rows.Err())
}

func (s *SQLStore) query(ctx context.Context, op, query string, args ...any) (*sql.Rows, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.classify(op, err)
	}
	return rows, nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return s.classify("ping", s.db.PingContext(ctx))
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
