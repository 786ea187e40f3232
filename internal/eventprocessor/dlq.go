// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
)

const defaultDLQHistory = 500

// deadLetterPublisher gives dead-lettered copies their own Nats-Msg-Id.
// The dead-letter subject shares the stream with the events subject, and
// reusing the event id would let the stream's duplicate window drop the copy.
type deadLetterPublisher struct {
	message.Publisher
}

func (p deadLetterPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		msg.Metadata.Set(natsgo.MsgIdHdr, "dlq-"+msg.UUID)
	}
	return p.Publisher.Publish(topic, msgs...)
}

// DLQEntry is one dead-lettered event as seen by the DLQ consumer.
type DLQEntry struct {
	EventID        string    `json:"eventId"`
	Kind           string    `json:"kind,omitempty"`
	ContentID      string    `json:"contentId,omitempty"`
	Code           string    `json:"code"`
	Attempts       int       `json:"attempts"`
	Reason         string    `json:"reason"`
	Payload        string    `json:"payload"`
	DeadLetteredAt time.Time `json:"deadLetteredAt"`
}

// DLQStats holds runtime statistics for the DLQ consumer.
type DLQStats struct {
	Total    int64            `json:"total"`
	Retained int              `json:"retained"`
	ByCode   map[string]int64 `json:"byCode"`
}

// DLQConsumer drains the dead-letter topic. Each entry is logged at error
// level, counted in engagecast_dlq_events_total{reason} and kept in a
// bounded ring of recent entries for the admin API.
type DLQConsumer struct {
	mu      sync.RWMutex
	ring    []DLQEntry
	next    int
	full    bool
	byCode  map[string]int64
	total   atomic.Int64
	events  *logging.EventLogger
	decoder *Serializer
	now     func() time.Time
}

// NewDLQConsumer creates a consumer retaining the last history entries.
func NewDLQConsumer(history int) *DLQConsumer {
	if history <= 0 {
		history = defaultDLQHistory
	}
	return &DLQConsumer{
		ring:    make([]DLQEntry, history),
		byCode:  make(map[string]int64),
		events:  logging.NewEventLogger(),
		decoder: NewSerializer(),
		now:     time.Now,
	}
}

// Handle is the Watermill handler for the dead-letter topic. It never
// fails: a dead-letter entry is terminal.
func (c *DLQConsumer) Handle(msg *message.Message) error {
	entry := DLQEntry{
		EventID:        msg.UUID,
		Kind:           msg.Metadata.Get(MetadataKind),
		ContentID:      msg.Metadata.Get(MetadataContentID),
		Code:           msg.Metadata.Get(MetadataDeadLetterCode),
		Reason:         msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		Payload:        string(msg.Payload),
		DeadLetteredAt: c.now(),
	}
	entry.Attempts, _ = strconv.Atoi(msg.Metadata.Get(MetadataAttempts))
	if entry.Code == "" {
		entry.Code = DeadLetterOther
	}
	if event, err := c.decoder.Unmarshal(msg.Payload); err == nil {
		if event.EventID != "" {
			entry.EventID = event.EventID
		}
		if entry.Kind == "" {
			entry.Kind = event.Kind.String()
		}
		if entry.ContentID == "" {
			entry.ContentID = event.ContentID
		}
	}

	c.record(entry)
	metrics.RecordDLQEvent(entry.Code)
	c.events.LogDeadLettered(msg.Context(), entry.EventID, entry.Code+": "+entry.Reason, entry.Attempts)
	return nil
}

func (c *DLQConsumer) record(entry DLQEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = entry
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}
	c.byCode[entry.Code]++
	c.total.Add(1)
}

// List returns up to limit retained entries, newest first. limit <= 0
// returns all of them.
func (c *DLQConsumer) List(limit int) []DLQEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := c.next
	if c.full {
		n = len(c.ring)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]DLQEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (c.next - i + len(c.ring)) % len(c.ring)
		out = append(out, c.ring[idx])
	}
	return out
}

// Stats returns counters since start.
func (c *DLQConsumer) Stats() DLQStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	retained := c.next
	if c.full {
		retained = len(c.ring)
	}
	byCode := make(map[string]int64, len(c.byCode))
	for k, v := range c.byCode {
		byCode[k] = v
	}
	return DLQStats{Total: c.total.Load(), Retained: retained, ByCode: byCode}
}

// HealthCheck implements HealthCheckable. Dead letters degrade the pipeline
// without making it unhealthy.
func (c *DLQConsumer) HealthCheck(_ context.Context) ComponentHealth {
	stats := c.Stats()
	health := ComponentHealth{
		Name:      "dlq",
		Healthy:   true,
		LastCheck: time.Now(),
		Details:   map[string]interface{}{"total": stats.Total},
	}
	if stats.Total > 0 {
		health.Degraded = true
		health.Message = "events have been dead-lettered"
	}
	return health
}
