// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRU_BasicOperations(t *testing.T) {
	c := NewLRU[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		got, found := c.Get(key)
		if !found || got != want {
			t.Errorf("Get(%q) = %d, %v; want %d, true", key, got, found, want)
		}
	}

	if c.Len() != 3 {
		t.Errorf("Expected len 3, got %d", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Access 'a' to make it most recently used
	c.Get("a")

	// 'b' is now least recently used
	c.Add("d", 4)

	if _, found := c.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := c.Get(key); !found {
			t.Errorf("Expected %q to be present", key)
		}
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions)
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	c := NewLRU[string](10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Add("k", "v")
	now = now.Add(2 * time.Minute)

	if _, found := c.Get("k"); found {
		t.Error("Expected expired entry to be gone")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on access, len = %d", c.Len())
	}
}

func TestLRU_Update(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	sawFound := []bool{}
	for i := 0; i < 3; i++ {
		c.Update("k", func(n int, found bool) int {
			sawFound = append(sawFound, found)
			return n + 10
		})
	}

	if got, _ := c.Get("k"); got != 30 {
		t.Errorf("Get after 3 updates = %d, want 30", got)
	}
	if sawFound[0] || !sawFound[1] || !sawFound[2] {
		t.Errorf("found flags = %v, want [false true true]", sawFound)
	}
}

func TestLRU_UpdateResetsExpired(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Update("k", func(n int, _ bool) int { return n + 1 })
	now = now.Add(time.Hour)

	got := c.Update("k", func(n int, found bool) int {
		if found {
			t.Error("expired entry reported as found")
		}
		return n + 1
	})
	if got != 1 {
		t.Errorf("Update after expiry = %d, want 1", got)
	}
}

func TestLRU_Remove(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Add("a", 1)

	if !c.Remove("a") {
		t.Error("Remove should report true for an existing key")
	}
	if c.Remove("a") {
		t.Error("Remove should report false for a missing key")
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Add("old1", 1)
	c.Add("old2", 2)
	now = now.Add(45 * time.Second)
	c.Add("fresh", 3)
	now = now.Add(30 * time.Second)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if _, found := c.Get("fresh"); !found {
		t.Error("fresh entry should survive cleanup")
	}
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Add("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", i%150)
				c.Update(key, func(n int, _ bool) int { return n + 1 })
				c.Get(key)
				if i%7 == 0 {
					c.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}

func TestAttemptTracker(t *testing.T) {
	tr := NewAttemptTracker(10, time.Minute)

	if got := tr.Attempts("e1"); got != 0 {
		t.Errorf("Attempts on unknown id = %d", got)
	}
	for want := 1; want <= 3; want++ {
		if got := tr.Fail("e1"); got != want {
			t.Errorf("Fail #%d = %d", want, got)
		}
	}
	tr.Fail("e2")

	if got := tr.Attempts("e1"); got != 3 {
		t.Errorf("Attempts(e1) = %d, want 3", got)
	}

	tr.Done("e1")
	if got := tr.Attempts("e1"); got != 0 {
		t.Errorf("Attempts after Done = %d, want 0", got)
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
}

func TestAttemptTracker_ConcurrentFailures(t *testing.T) {
	tr := NewAttemptTracker(10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Fail("same")
		}()
	}
	wg.Wait()

	if got := tr.Attempts("same"); got != 50 {
		t.Errorf("Attempts = %d, want 50", got)
	}
}

func BenchmarkLRU_Add(b *testing.B) {
	c := NewLRU[int](10000, time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Add(fmt.Sprintf("key%d", i%20000), i)
	}
}

func BenchmarkAttemptTracker_Fail(b *testing.B) {
	tr := NewAttemptTracker(10000, time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Fail(fmt.Sprintf("event%d", i%5000))
	}
}
