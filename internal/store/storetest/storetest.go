// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package storetest runs the shared AggregateStore behavior suite against any
// backend.
package storetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.AggregateStore

// Run executes every behavior test against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.AggregateStore)
	}{
		{"ConditionalPrimitives", testConditionalPrimitives},
		{"CounterFloorsAtZero", testCounterFloorsAtZero},
		{"GetContentUnknownIsZero", testGetContentUnknown},
		{"PutContentKeepsCounters", testPutContentKeepsCounters},
		{"LikeUnlikeParity", testLikeUnlikeParity},
		{"StaleLikeAfterUnlike", testStaleLikeAfterUnlike},
		{"LikeCountMatchesRelations", testLikeCountMatchesRelations},
		{"CommentRedelivery", testCommentRedelivery},
		{"DoubleView", testDoubleView},
		{"ConcurrentDistinctLikes", testConcurrentDistinctLikes},
		{"ScenarioShuffledWithDuplicates", testScenarioShuffled},
		{"ListCommentsNewestFirst", testListCommentsNewestFirst},
		{"ListContentIDs", testListContentIDs},
		{"Reconcile", testReconcile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func event(kind models.EventKind, contentID, userID string, offset int, text string) *models.EngagementEvent {
	return &models.EngagementEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		ContentID:  contentID,
		UserID:     userID,
		Text:       text,
		EnqueuedAt: base.Add(time.Duration(offset) * time.Millisecond),
	}
}

// apply retries transient failures the way queue redelivery would. It is
// called from worker goroutines, so failures are reported with Errorf.
func apply(t *testing.T, s store.AggregateStore, e *models.EngagementEvent) models.Outcome {
	t.Helper()
	ctx := context.Background()
	for attempt := 0; attempt < 50; attempt++ {
		out, err := store.ApplyEvent(ctx, s, e)
		if err == nil {
			return out
		}
		if !store.IsTransient(err) {
			t.Errorf("ApplyEvent(%s %s) error = %v", e.Kind, e.EventID, err)
			return models.OutcomeDuplicate
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("ApplyEvent(%s %s) kept failing transiently", e.Kind, e.EventID)
	return models.OutcomeDuplicate
}

func content(t *testing.T, s store.AggregateStore, id string) *models.ContentItem {
	t.Helper()
	item, err := s.GetContent(context.Background(), id)
	if err != nil {
		t.Fatalf("GetContent(%q) error = %v", id, err)
	}
	return item
}

func assertCounts(t *testing.T, s store.AggregateStore, id string, likes, comments, views int64) {
	t.Helper()
	item := content(t, s, id)
	if item.LikeCount != likes || item.CommentCount != comments || item.ViewCount != views {
		t.Errorf("%s counts = {likes:%d comments:%d views:%d}, want {likes:%d comments:%d views:%d}",
			id, item.LikeCount, item.CommentCount, item.ViewCount, likes, comments, views)
	}
}

func liked(t *testing.T, s store.AggregateStore, contentID, userID string) bool {
	t.Helper()
	likes, err := s.ListLikes(context.Background(), contentID)
	if err != nil {
		t.Fatalf("ListLikes error = %v", err)
	}
	for _, l := range likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

func testConditionalPrimitives(t *testing.T, s store.AggregateStore) {
	ctx := context.Background()

	steps := []struct {
		name string
		op   func() (bool, error)
		want bool
	}{
		{"first like", func() (bool, error) { return s.InsertLike(ctx, "c1", "u1", base) }, true},
		{"repeat like", func() (bool, error) { return s.InsertLike(ctx, "c1", "u1", base) }, false},
		{"unlike", func() (bool, error) { return s.DeleteLike(ctx, "c1", "u1", base.Add(time.Second)) }, true},
		{"repeat unlike", func() (bool, error) { return s.DeleteLike(ctx, "c1", "u1", base.Add(time.Second)) }, false},
		{"unlike absent pair", func() (bool, error) { return s.DeleteLike(ctx, "c1", "u9", base) }, false},
		{"first view", func() (bool, error) { return s.InsertView(ctx, "c1", "u1", base) }, true},
		{"repeat view", func() (bool, error) { return s.InsertView(ctx, "c1", "u1", base.Add(time.Hour)) }, false},
		{"comment", func() (bool, error) {
			return s.InsertComment(ctx, &models.Comment{ContentID: "c1", CommentID: "m1", UserID: "u1", Text: "hi", CreatedAt: base})
		}, true},
		{"same comment id", func() (bool, error) {
			return s.InsertComment(ctx, &models.Comment{ContentID: "c1", CommentID: "m1", UserID: "u2", Text: "other", CreatedAt: base.Add(time.Minute)})
		}, false},
	}

	for _, step := range steps {
		got, err := step.op()
		if err != nil {
			t.Fatalf("%s: error = %v", step.name, err)
		}
		if got != step.want {
			t.Errorf("%s: changed = %v, want %v", step.name, got, step.want)
		}
	}

	n, err := s.IncrementCounter(ctx, "c1", models.FieldViewCount, 3)
	if err != nil || n != 3 {
		t.Errorf("IncrementCounter = %d, %v; want 3, nil", n, err)
	}
	if _, err := s.IncrementCounter(ctx, "c1", models.CounterField("shares"), 1); err == nil {
		t.Error("IncrementCounter with unknown field should fail")
	}
}

func testCounterFloorsAtZero(t *testing.T, s store.AggregateStore) {
	ctx := context.Background()
	n, err := s.IncrementCounter(ctx, "c1", models.FieldLikeCount, -1)
	if err != nil || n != 0 {
		t.Fatalf("decrement from zero = %d, %v; want 0, nil", n, err)
	}
	if _, err := s.IncrementCounter(ctx, "c1", models.FieldLikeCount, 2); err != nil {
		t.Fatal(err)
	}
	if n, _ = s.IncrementCounter(ctx, "c1", models.FieldLikeCount, -5); n != 0 {
		t.Errorf("large decrement = %d, want 0", n)
	}
}

func testGetContentUnknown(t *testing.T, s store.AggregateStore) {
	item := content(t, s, "never-touched")
	if item.ContentID != "never-touched" {
		t.Errorf("ContentID = %q", item.ContentID)
	}
	assertCounts(t, s, "never-touched", 0, 0, 0)
}

func testPutContentKeepsCounters(t *testing.T, s store.AggregateStore) {
	apply(t, s, event(models.KindLike, "c1", "u1", 0, ""))

	err := s.PutContent(context.Background(), &models.ContentItem{ContentID: "c1", OwnerID: "owner", Status: models.StatusReady})
	if err != nil {
		t.Fatal(err)
	}

	item := content(t, s, "c1")
	if item.OwnerID != "owner" || item.Status != models.StatusReady {
		t.Errorf("PutContent not applied: %+v", item)
	}
	if item.LikeCount != 1 {
		t.Errorf("PutContent changed LikeCount to %d", item.LikeCount)
	}
}

// Each event is redelivered a random number of times, duplicates adjacent
// and interleaved; the relation must end in the state of the newest event.
func testLikeUnlikeParity(t *testing.T, s store.AggregateStore) {
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 5; round++ {
		contentID := fmt.Sprintf("parity-%d", round)
		var events []*models.EngagementEvent
		for i := 0; i < 12; i++ {
			kind := models.KindLike
			if rng.IntN(2) == 0 {
				kind = models.KindUnlike
			}
			events = append(events, event(kind, contentID, "u1", i, ""))
		}

		var deliveries []*models.EngagementEvent
		for _, e := range events {
			for n := 1 + rng.IntN(3); n > 0; n-- {
				deliveries = append(deliveries, e)
			}
		}
		rng.Shuffle(len(deliveries), func(i, j int) { deliveries[i], deliveries[j] = deliveries[j], deliveries[i] })

		for _, e := range deliveries {
			apply(t, s, e)
		}

		want := events[len(events)-1].Kind == models.KindLike
		if got := liked(t, s, contentID, "u1"); got != want {
			t.Errorf("round %d: liked = %v, want %v", round, got, want)
		}
		wantCount := int64(0)
		if want {
			wantCount = 1
		}
		if got := content(t, s, contentID).LikeCount; got != wantCount {
			t.Errorf("round %d: likeCount = %d, want %d", round, got, wantCount)
		}
	}
}

func testStaleLikeAfterUnlike(t *testing.T, s store.AggregateStore) {
	like := event(models.KindLike, "c1", "u1", 0, "")
	unlike := event(models.KindUnlike, "c1", "u1", 1, "")

	if out := apply(t, s, unlike); out != models.OutcomeDuplicate {
		t.Errorf("unlike of absent relation = %v, want duplicate", out)
	}
	if out := apply(t, s, like); out != models.OutcomeDuplicate {
		t.Errorf("like older than recorded unlike = %v, want duplicate", out)
	}
	if liked(t, s, "c1", "u1") {
		t.Error("stale like must not create the relation")
	}

	relike := event(models.KindLike, "c1", "u1", 2, "")
	if out := apply(t, s, relike); out != models.OutcomeApplied {
		t.Errorf("newer like = %v, want applied", out)
	}
	assertCounts(t, s, "c1", 1, 0, 0)
}

func testLikeCountMatchesRelations(t *testing.T, s store.AggregateStore) {
	const workers = 6
	rng := rand.New(rand.NewPCG(3, 5))

	var events []*models.EngagementEvent
	for i := 0; i < 120; i++ {
		kind := models.KindLike
		if rng.IntN(3) == 0 {
			kind = models.KindUnlike
		}
		events = append(events, event(kind, "hot", fmt.Sprintf("u%d", rng.IntN(15)), i, ""))
	}

	var wg sync.WaitGroup
	ch := make(chan *models.EngagementEvent)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range ch {
				apply(t, s, e)
			}
		}()
	}
	for _, e := range events {
		ch <- e
		if rng.IntN(4) == 0 {
			ch <- e
		}
	}
	close(ch)
	wg.Wait()

	likes, err := s.ListLikes(context.Background(), "hot")
	if err != nil {
		t.Fatal(err)
	}
	if got := content(t, s, "hot").LikeCount; got != int64(len(likes)) {
		t.Errorf("likeCount = %d, relations = %d", got, len(likes))
	}
}

func testCommentRedelivery(t *testing.T, s store.AggregateStore) {
	e := event(models.KindComment, "c1", "u1", 0, "first!")

	var wg sync.WaitGroup
	outcomes := make(chan models.Outcome, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- apply(t, s, e)
		}()
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for out := range outcomes {
		if out == models.OutcomeApplied {
			applied++
		}
	}
	if applied != 1 {
		t.Errorf("applied outcomes = %d, want 1", applied)
	}

	comments, err := s.ListComments(context.Background(), "c1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].CommentID != e.EventID || comments[0].Text != "first!" {
		t.Errorf("comments = %+v, want one row keyed by the event id", comments)
	}
	assertCounts(t, s, "c1", 0, 1, 0)
}

func testDoubleView(t *testing.T, s store.AggregateStore) {
	first := apply(t, s, event(models.KindView, "c1", "u1", 0, ""))
	second := apply(t, s, event(models.KindView, "c1", "u1", 1, ""))

	if first != models.OutcomeApplied || second != models.OutcomeDuplicate {
		t.Errorf("outcomes = %v, %v; want applied, duplicate", first, second)
	}
	assertCounts(t, s, "c1", 0, 0, 1)
}

func testConcurrentDistinctLikes(t *testing.T, s store.AggregateStore) {
	const n, workers = 40, 8

	ch := make(chan *models.EngagementEvent, n)
	for i := 0; i < n; i++ {
		ch <- event(models.KindLike, "viral", fmt.Sprintf("user-%d", i), i, "")
	}
	close(ch)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range ch {
				apply(t, s, e)
			}
		}()
	}
	wg.Wait()

	assertCounts(t, s, "viral", n, 0, 0)
}

// LIKE(u1), LIKE(u2), VIEW(u1), UNLIKE(u1), COMMENT(u2,"hi") in any order,
// each delivered one to three times, converge to {1, 1, 1}.
func testScenarioShuffled(t *testing.T, s store.AggregateStore) {
	for seed := uint64(0); seed < 10; seed++ {
		id := fmt.Sprintf("scenario-%d", seed)
		events := []*models.EngagementEvent{
			event(models.KindLike, id, "u1", 0, ""),
			event(models.KindLike, id, "u2", 1, ""),
			event(models.KindView, id, "u1", 2, ""),
			event(models.KindUnlike, id, "u1", 3, ""),
			event(models.KindComment, id, "u2", 4, "hi"),
		}

		rng := rand.New(rand.NewPCG(seed, seed+1))
		var deliveries []*models.EngagementEvent
		for _, e := range events {
			for n := 1 + rng.IntN(3); n > 0; n-- {
				deliveries = append(deliveries, e)
			}
		}
		rng.Shuffle(len(deliveries), func(i, j int) { deliveries[i], deliveries[j] = deliveries[j], deliveries[i] })

		for _, e := range deliveries {
			apply(t, s, e)
		}

		assertCounts(t, s, id, 1, 1, 1)
		if liked(t, s, id, "u1") || !liked(t, s, id, "u2") {
			t.Errorf("seed %d: like relations wrong", seed)
		}
	}
}

func testListCommentsNewestFirst(t *testing.T, s store.AggregateStore) {
	for i := 0; i < 5; i++ {
		apply(t, s, event(models.KindComment, "c1", "u1", i, fmt.Sprintf("comment %d", i)))
	}

	comments, err := s.ListComments(context.Background(), "c1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 3 {
		t.Fatalf("len = %d, want 3", len(comments))
	}
	for i, want := range []string{"comment 4", "comment 3", "comment 2"} {
		if comments[i].Text != want {
			t.Errorf("comments[%d] = %q, want %q", i, comments[i].Text, want)
		}
	}

	all, err := s.ListComments(context.Background(), "c1", store.AllComments)
	if err != nil || len(all) != 5 {
		t.Errorf("AllComments = %d rows, %v", len(all), err)
	}
	if n, err := s.CountComments(context.Background(), "c1"); err != nil || n != 5 {
		t.Errorf("CountComments = %d, %v", n, err)
	}

	empty, err := s.ListComments(context.Background(), "nothing", 0)
	if err != nil || len(empty) != 0 {
		t.Errorf("comments on unknown content = %v, %v", empty, err)
	}
}

func testListContentIDs(t *testing.T, s store.AggregateStore) {
	apply(t, s, event(models.KindLike, "alpha", "u1", 0, ""))
	apply(t, s, event(models.KindView, "beta", "u1", 1, ""))
	if _, err := s.InsertView(context.Background(), "gamma", "u1", base); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListContentIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"alpha": true, "beta": true, "gamma": true}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected id %q", id)
		}
	}
}

func testReconcile(t *testing.T, s store.AggregateStore) {
	ctx := context.Background()

	// Relations written without their counters, as a crashed backfill would.
	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := s.InsertLike(ctx, "drift", u, base); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.InsertView(ctx, "drift", "u1", base); err != nil {
		t.Fatal(err)
	}
	if _, err := s.IncrementCounter(ctx, "drift", models.FieldCommentCount, 4); err != nil {
		t.Fatal(err)
	}
	apply(t, s, event(models.KindLike, "clean", "u1", 0, ""))

	dry, err := store.Reconcile(ctx, s, store.ReconcileOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(dry.Corrections) != 3 {
		t.Errorf("dry run corrections = %+v, want 3", dry.Corrections)
	}
	assertCounts(t, s, "drift", 0, 4, 0)

	report, err := store.Reconcile(ctx, s, store.ReconcileOptions{ContentIDs: []string{"drift", "clean"}})
	if err != nil {
		t.Fatal(err)
	}
	if report.Checked != 2 || len(report.Corrections) != 3 {
		t.Errorf("report = %+v", report)
	}
	assertCounts(t, s, "drift", 3, 0, 1)
	assertCounts(t, s, "clean", 1, 0, 0)
}
