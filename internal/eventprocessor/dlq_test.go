// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/engagecast/internal/models"
)

func TestDLQConsumer_Handle_ReadsMetadata(t *testing.T) {
	c := NewDLQConsumer(10)

	msg := deadLetterMessage("msg-uuid", DeadLetterExhausted, "5")
	msg.Metadata.Set(MetadataKind, "VIEW")
	msg.Metadata.Set(MetadataContentID, "video-1")

	if err := c.Handle(msg); err != nil {
		t.Fatalf("Handle() error = %v, dead letters are terminal", err)
	}

	entries := c.List(0)
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.EventID != "msg-uuid" {
		t.Errorf("EventID = %s, want msg-uuid", e.EventID)
	}
	if e.Code != DeadLetterExhausted {
		t.Errorf("Code = %s, want %s", e.Code, DeadLetterExhausted)
	}
	if e.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", e.Attempts)
	}
	if e.Kind != "VIEW" || e.ContentID != "video-1" {
		t.Errorf("Kind/ContentID = %s/%s", e.Kind, e.ContentID)
	}
	if e.Reason != "test failure" {
		t.Errorf("Reason = %q", e.Reason)
	}
	if e.DeadLetteredAt.IsZero() {
		t.Error("DeadLetteredAt not set")
	}
}

func TestDLQConsumer_Handle_FillsFromPayload(t *testing.T) {
	c := NewDLQConsumer(10)
	event := newTestEvent(models.KindLike, "video-7", "user-3")
	data, err := NewSerializer().Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	msg := message.NewMessage("other-uuid", data)
	if err := c.Handle(msg); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	e := c.List(1)[0]
	if e.EventID != event.EventID {
		t.Errorf("EventID = %s, want %s from payload", e.EventID, event.EventID)
	}
	if e.Kind != "LIKE" || e.ContentID != "video-7" {
		t.Errorf("Kind/ContentID = %s/%s", e.Kind, e.ContentID)
	}
	if e.Code != DeadLetterOther {
		t.Errorf("Code = %s, want %s when metadata is missing", e.Code, DeadLetterOther)
	}
}

func TestDLQConsumer_RingKeepsNewest(t *testing.T) {
	c := NewDLQConsumer(3)
	for i := 1; i <= 5; i++ {
		_ = c.Handle(deadLetterMessage(fmt.Sprintf("e-%d", i), DeadLetterMalformed, "1"))
	}

	entries := c.List(0)
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	for i, want := range []string{"e-5", "e-4", "e-3"} {
		if entries[i].EventID != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].EventID, want)
		}
	}

	if got := c.List(2); len(got) != 2 || got[0].EventID != "e-5" {
		t.Errorf("List(2) = %+v", got)
	}

	stats := c.Stats()
	if stats.Total != 5 {
		t.Errorf("Total = %d, want 5", stats.Total)
	}
	if stats.Retained != 3 {
		t.Errorf("Retained = %d, want 3", stats.Retained)
	}
	if stats.ByCode[DeadLetterMalformed] != 5 {
		t.Errorf("ByCode = %v", stats.ByCode)
	}
}

func TestDLQConsumer_ListBeforeWrap(t *testing.T) {
	c := NewDLQConsumer(10)
	if got := c.List(5); len(got) != 0 {
		t.Errorf("empty consumer listed %d entries", len(got))
	}

	_ = c.Handle(deadLetterMessage("a", DeadLetterMalformed, "1"))
	_ = c.Handle(deadLetterMessage("b", DeadLetterMaxDeliver, "10"))

	got := c.List(10)
	if len(got) != 2 || got[0].EventID != "b" || got[1].EventID != "a" {
		t.Errorf("List() = %+v, want b then a", got)
	}
}

func TestDLQConsumer_DefaultHistory(t *testing.T) {
	c := NewDLQConsumer(0)
	if len(c.ring) != defaultDLQHistory {
		t.Errorf("ring size = %d, want %d", len(c.ring), defaultDLQHistory)
	}
}

func TestDLQConsumer_ConcurrentAccess(t *testing.T) {
	c := NewDLQConsumer(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = c.Handle(deadLetterMessage(fmt.Sprintf("e-%d-%d", n, j), DeadLetterExhausted, "5"))
				_ = c.List(5)
				_ = c.Stats()
			}
		}(i)
	}
	wg.Wait()

	if stats := c.Stats(); stats.Total != 200 || stats.Retained != 50 {
		t.Errorf("Stats() = %+v, want total 200 retained 50", stats)
	}
}

func TestDeadLetterPublisher_OwnMessageID(t *testing.T) {
	inner := &fakePublisher{}
	pub := deadLetterPublisher{inner}

	msg := message.NewMessage("event-1", []byte("{}"))
	msg.Metadata.Set(natsgo.MsgIdHdr, "event-1")
	if err := pub.Publish("engagement.dlq", msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := inner.published("engagement.dlq")
	if len(got) != 1 {
		t.Fatalf("published %d messages, want 1", len(got))
	}
	if id := got[0].Metadata.Get(natsgo.MsgIdHdr); id != "dlq-event-1" {
		t.Errorf("Nats-Msg-Id = %s, want dlq-event-1", id)
	}
}
