// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
)

// Key prefixes. Content IDs never contain '/', so every prefix scan is exact.
const (
	contentPrefix      = "c/"
	likePrefix         = "l/"
	viewPrefix         = "v/"
	commentPrefix      = "m/"
	commentIndexPrefix = "mi/"
)

// BadgerOptions configures NewBadgerStore.
type BadgerOptions struct {
	Dir             string
	InMemory        bool
	SyncWrites      bool
	ConflictRetries int
	GCRatio         float64
}

// BadgerStore is the embedded default AggregateStore.
//
// Every conditional operation runs in a serializable Badger transaction. Two
// writers touching the same key conflict at commit and the loser is retried,
// which is what makes the counter increments race free without any
// application-level lock.
type BadgerStore struct {
	db   *badger.DB
	opts BadgerOptions
	now  func() time.Time

	mu     sync.RWMutex
	closed bool
}

type contentRecord struct {
	OwnerID   string               `json:"o,omitempty"`
	Status    models.ContentStatus `json:"s,omitempty"`
	Likes     int64                `json:"l"`
	Comments  int64                `json:"c"`
	Views     int64                `json:"v"`
	UpdatedAt time.Time            `json:"u"`
}

// NewBadgerStore opens (or creates) the Badger database.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger store: directory is required unless in-memory")
	}
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = 10
	}
	if opts.GCRatio <= 0 || opts.GCRatio >= 1 {
		opts.GCRatio = 0.5
	}

	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites

	// Reduce logging verbosity
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("dir", opts.Dir).
		Bool("in_memory", opts.InMemory).
		Msg("Badger aggregate store opened")

	return &BadgerStore{db: db, opts: opts, now: time.Now}, nil
}

func contentKey(contentID string) []byte { return []byte(contentPrefix + contentID) }

func likeKey(contentID, userID string) []byte {
	return []byte(likePrefix + contentID + "/" + userID)
}

func viewKey(contentID, userID string) []byte {
	return []byte(viewPrefix + contentID + "/" + userID)
}

func commentIndexKey(contentID, commentID string) []byte {
	return []byte(commentIndexPrefix + contentID + "/" + commentID)
}

// commentKey orders comments newest first under a forward scan.
func commentKey(contentID string, createdAt time.Time, commentID string) []byte {
	inverted := math.MaxInt64 - createdAt.UnixNano()
	return []byte(fmt.Sprintf("%s%s/%019d/%s", commentPrefix, contentID, inverted, commentID))
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
// fn must be safe to run more than once.
func (s *BadgerStore) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Transient(op, err)
		}

		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			if err != nil && !errors.Is(err, ErrInvalidField) {
				return Transient(op, err)
			}
			return err
		}
		if attempt >= s.opts.ConflictRetries {
			return Transient(op, fmt.Errorf("gave up after %d conflicts: %w", attempt+1, err))
		}

		metrics.StoreConflictRetries.Inc()
		// Jittered backoff keeps hot-key writers from retrying in lockstep.
		backoff := time.Duration(attempt+1) * 200 * time.Microsecond
		time.Sleep(backoff + rand.N(backoff))
	}
}

func (s *BadgerStore) view(op string, fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.View(fn); err != nil {
		return Transient(op, err)
	}
	return nil
}

func readContent(txn *badger.Txn, contentID string) (contentRecord, error) {
	var rec contentRecord
	item, err := txn.Get(contentKey(contentID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, nil
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}

func writeContent(txn *badger.Txn, contentID string, rec contentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	return txn.Set(contentKey(contentID), data)
}

func (s *BadgerStore) adjust(txn *badger.Txn, contentID string, field models.CounterField, delta int64) (int64, error) {
	rec, err := readContent(txn, contentID)
	if err != nil {
		return 0, err
	}

	var counter *int64
	switch field {
	case models.FieldLikeCount:
		counter = &rec.Likes
	case models.FieldCommentCount:
		counter = &rec.Comments
	case models.FieldViewCount:
		counter = &rec.Views
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	*counter = max(*counter+delta, 0)
	rec.UpdatedAt = s.now().UTC()
	if err := writeContent(txn, contentID, rec); err != nil {
		return 0, err
	}
	return *counter, nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func encodeTime(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UTC().UnixNano(), 10))
}

func decodeTime(val []byte) time.Time {
	n, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func insertIfAbsent(txn *badger.Txn, key, value []byte) (bool, error) {
	ok, err := exists(txn, key)
	if err != nil || ok {
		return false, err
	}
	return true, txn.Set(key, value)
}

// likeRecord is the per-pair register. Liked=false is a tombstone.
type likeRecord struct {
	Liked     bool  `json:"k"`
	EventAt   int64 `json:"e"`
	CreatedAt int64 `json:"c"`
}

func readLike(txn *badger.Txn, key []byte) (likeRecord, bool, error) {
	var rec likeRecord
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, true, err
}

// setLiked moves the register to liked at event time at and reports whether
// the relation's existence changed. An event no newer than the stored stamp
// is ignored, which covers both redelivery and stale out-of-order events.
func setLiked(txn *badger.Txn, contentID, userID string, liked bool, at time.Time) (bool, error) {
	key := likeKey(contentID, userID)
	eventAt := at.UTC().UnixNano()

	rec, found, err := readLike(txn, key)
	if err != nil {
		return false, err
	}
	if found && rec.EventAt >= eventAt {
		return false, nil
	}

	next := likeRecord{Liked: liked, EventAt: eventAt, CreatedAt: eventAt}
	if found && rec.Liked && liked {
		next.CreatedAt = rec.CreatedAt
	}
	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("marshal like: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return false, err
	}
	return liked != (found && rec.Liked), nil
}

func insertComment(txn *badger.Txn, c *models.Comment) (bool, error) {
	idx := commentIndexKey(c.ContentID, c.CommentID)
	ok, err := exists(txn, idx)
	if err != nil || ok {
		return false, err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("marshal comment: %w", err)
	}
	key := commentKey(c.ContentID, c.CreatedAt, c.CommentID)
	if err := txn.Set(key, data); err != nil {
		return false, err
	}
	return true, txn.Set(idx, key)
}

// InsertLike creates the like relation unless it exists or a newer unlike
// has been recorded.
func (s *BadgerStore) InsertLike(ctx context.Context, contentID, userID string, at time.Time) (bool, error) {
	var inserted bool
	err := s.update(ctx, "insert_like", func(txn *badger.Txn) (err error) {
		inserted, err = setLiked(txn, contentID, userID, true, at)
		return err
	})
	return inserted, err
}

// DeleteLike removes the like relation if it is older than at.
func (s *BadgerStore) DeleteLike(ctx context.Context, contentID, userID string, at time.Time) (bool, error) {
	var deleted bool
	err := s.update(ctx, "delete_like", func(txn *badger.Txn) (err error) {
		deleted, err = setLiked(txn, contentID, userID, false, at)
		return err
	})
	return deleted, err
}

// InsertComment stores c if no comment with its CommentID exists.
func (s *BadgerStore) InsertComment(ctx context.Context, c *models.Comment) (bool, error) {
	var inserted bool
	err := s.update(ctx, "insert_comment", func(txn *badger.Txn) (err error) {
		inserted, err = insertComment(txn, c)
		return err
	})
	return inserted, err
}

// InsertView records a first view.
func (s *BadgerStore) InsertView(ctx context.Context, contentID, userID string, at time.Time) (bool, error) {
	var inserted bool
	err := s.update(ctx, "insert_view", func(txn *badger.Txn) (err error) {
		inserted, err = insertIfAbsent(txn, viewKey(contentID, userID), encodeTime(at))
		return err
	})
	return inserted, err
}

// IncrementCounter adds delta to field, flooring at zero.
func (s *BadgerStore) IncrementCounter(ctx context.Context, contentID string, field models.CounterField, delta int64) (int64, error) {
	var value int64
	err := s.update(ctx, "increment_counter", func(txn *badger.Txn) (err error) {
		value, err = s.adjust(txn, contentID, field, delta)
		return err
	})
	return value, err
}

// applyRelation runs a conditional write and, when it changed something,
// the counter adjustment in the same transaction.
func (s *BadgerStore) applyRelation(ctx context.Context, op, contentID string, field models.CounterField, delta int64, write func(txn *badger.Txn) (bool, error)) (models.Outcome, error) {
	outcome := models.OutcomeDuplicate
	err := s.update(ctx, op, func(txn *badger.Txn) error {
		outcome = models.OutcomeDuplicate
		changed, err := write(txn)
		if err != nil || !changed {
			return err
		}
		if _, err := s.adjust(txn, contentID, field, delta); err != nil {
			return err
		}
		outcome = models.OutcomeApplied
		return nil
	})
	return outcome, err
}

// ApplyLike inserts the relation and increments likeCount atomically.
func (s *BadgerStore) ApplyLike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_like", contentID, models.FieldLikeCount, 1, func(txn *badger.Txn) (bool, error) {
		return setLiked(txn, contentID, userID, true, at)
	})
}

// ApplyUnlike deletes the relation and decrements likeCount atomically.
func (s *BadgerStore) ApplyUnlike(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_unlike", contentID, models.FieldLikeCount, -1, func(txn *badger.Txn) (bool, error) {
		return setLiked(txn, contentID, userID, false, at)
	})
}

// ApplyComment inserts the comment and increments commentCount atomically.
func (s *BadgerStore) ApplyComment(ctx context.Context, c *models.Comment) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_comment", c.ContentID, models.FieldCommentCount, 1, func(txn *badger.Txn) (bool, error) {
		return insertComment(txn, c)
	})
}

// ApplyView inserts the view record and increments viewCount atomically.
func (s *BadgerStore) ApplyView(ctx context.Context, contentID, userID string, at time.Time) (models.Outcome, error) {
	return s.applyRelation(ctx, "apply_view", contentID, models.FieldViewCount, 1, func(txn *badger.Txn) (bool, error) {
		return insertIfAbsent(txn, viewKey(contentID, userID), encodeTime(at))
	})
}

// GetContent returns the content item, zero-valued when unknown.
func (s *BadgerStore) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	var rec contentRecord
	err := s.view("get_content", func(txn *badger.Txn) (err error) {
		rec, err = readContent(txn, contentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &models.ContentItem{
		ContentID:    contentID,
		OwnerID:      rec.OwnerID,
		Status:       rec.Status,
		LikeCount:    rec.Likes,
		CommentCount: rec.Comments,
		ViewCount:    rec.Views,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// PutContent sets owner and status. Counters are left untouched.
func (s *BadgerStore) PutContent(ctx context.Context, item *models.ContentItem) error {
	return s.update(ctx, "put_content", func(txn *badger.Txn) error {
		rec, err := readContent(txn, item.ContentID)
		if err != nil {
			return err
		}
		rec.OwnerID = item.OwnerID
		rec.Status = item.Status
		rec.UpdatedAt = s.now().UTC()
		return writeContent(txn, item.ContentID, rec)
	})
}

// SetCounters overwrites all three counters. Only reconciliation calls it.
func (s *BadgerStore) SetCounters(ctx context.Context, contentID string, likes, comments, views int64) error {
	return s.update(ctx, "set_counters", func(txn *badger.Txn) error {
		rec, err := readContent(txn, contentID)
		if err != nil {
			return err
		}
		rec.Likes, rec.Comments, rec.Views = max(likes, 0), max(comments, 0), max(views, 0)
		rec.UpdatedAt = s.now().UTC()
		return writeContent(txn, contentID, rec)
	})
}

func (s *BadgerStore) scan(op string, prefix []byte, fn func(item *badger.Item) error) error {
	return s.view(op, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := fn(it.Item()); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListLikes enumerates current like relations for contentID. Tombstones are
// skipped.
func (s *BadgerStore) ListLikes(ctx context.Context, contentID string) ([]models.LikeRelation, error) {
	prefix := likePrefix + contentID + "/"
	var likes []models.LikeRelation
	err := s.scan("list_likes", []byte(prefix), func(item *badger.Item) error {
		return item.Value(func(val []byte) error {
			var rec likeRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode like %s: %w", item.Key(), err)
			}
			if !rec.Liked {
				return nil
			}
			likes = append(likes, models.LikeRelation{
				ContentID: contentID,
				UserID:    strings.TrimPrefix(string(item.Key()), prefix),
				CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
			})
			return nil
		})
	})
	return likes, err
}

// ListViews enumerates view records for contentID.
func (s *BadgerStore) ListViews(ctx context.Context, contentID string) ([]models.ViewRecord, error) {
	prefix := viewPrefix + contentID + "/"
	var views []models.ViewRecord
	err := s.scan("list_views", []byte(prefix), func(item *badger.Item) error {
		return item.Value(func(val []byte) error {
			views = append(views, models.ViewRecord{
				ContentID:     contentID,
				UserID:        strings.TrimPrefix(string(item.Key()), prefix),
				FirstViewedAt: decodeTime(val),
			})
			return nil
		})
	})
	return views, err
}

var errStopScan = errors.New("stop scan")

// ListComments returns comments newest first.
func (s *BadgerStore) ListComments(ctx context.Context, contentID string, limit int) ([]models.Comment, error) {
	limit = ClampCommentLimit(limit)
	comments := []models.Comment{}
	err := s.scan("list_comments", []byte(commentPrefix+contentID+"/"), func(item *badger.Item) error {
		if limit != AllComments && len(comments) >= limit {
			return errStopScan
		}
		return item.Value(func(val []byte) error {
			var c models.Comment
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("decode comment %s: %w", item.Key(), err)
			}
			comments = append(comments, c)
			return nil
		})
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return comments, nil
}

// CountComments counts comment rows without decoding them.
func (s *BadgerStore) CountComments(ctx context.Context, contentID string) (int64, error) {
	var n int64
	prefix := []byte(commentIndexPrefix + contentID + "/")
	err := s.view("count_comments", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// ListContentIDs returns every content id that has a record or any relation.
func (s *BadgerStore) ListContentIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.view("list_content_ids", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, prefix := range []string{contentPrefix, likePrefix, viewPrefix, commentIndexPrefix} {
			p := []byte(prefix)
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				rest := strings.TrimPrefix(string(it.Item().Key()), prefix)
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					rest = rest[:i]
				}
				seen[rest] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping verifies the database accepts reads.
func (s *BadgerStore) Ping(ctx context.Context) error {
	return s.view("ping", func(txn *badger.Txn) error { return nil })
}

// RunGC reclaims value log space until Badger reports nothing to rewrite.
func (s *BadgerStore) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.opts.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.opts.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database. Further calls return ErrClosed.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
