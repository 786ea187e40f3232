// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagecast/internal/cache"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
	"github.com/tomtom215/engagecast/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeSnapshot     = "snapshot"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
)

var (
	// ErrTooManySubscriptions is returned when a client is at its limit.
	ErrTooManySubscriptions = errors.New("too many subscriptions")

	// ErrClientGone is returned for a client that is not registered.
	ErrClientGone = errors.New("client is not connected")

	// ErrHubBusy is returned by Publish when the broadcast buffer is full.
	ErrHubBusy = errors.New("broadcast buffer full")
)

// Message is one outbound WebSocket frame.
type Message struct {
	Type      string      `json:"type"`
	ContentID string      `json:"content_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// SnapshotReader supplies the current state of a content item for the first
// frame after a subscribe.
type SnapshotReader interface {
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
}

// Hub keeps one channel per content id and fans snapshots out to the clients
// subscribed to it. Clients whose send buffer is full are disconnected.
type Hub struct {
	config Config
	reader SnapshotReader
	now    func() time.Time

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	broadcast chan models.Snapshot
	latest    *cache.LRU[models.Snapshot]
}

// NewHub creates a Hub. reader may be nil, in which case a subscribe only
// gets a snapshot once one has passed through the hub.
func NewHub(cfg Config, reader SnapshotReader) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		config:    cfg,
		reader:    reader,
		now:       time.Now,
		clients:   make(map[*Client]struct{}),
		channels:  make(map[string]map[*Client]struct{}),
		broadcast: make(chan models.Snapshot, cfg.HubBuffer),
		latest:    cache.NewLRU[models.Snapshot](cfg.LatestCacheSize, time.Hour),
	}
}

// Config returns the hub's effective configuration.
func (h *Hub) Config() Config {
	return h.config
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Debug().Uint64("client_id", c.id).Int("total_clients", total).Msg("websocket client connected")
}

// Unregister removes a client and all of its subscriptions.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		logging.Debug().Uint64("client_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// removeLocked drops c, closes its send channel and clears its channels.
// h.mu must be held.
func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)

	for contentID := range c.subs {
		h.leaveLocked(contentID, c)
	}
	metrics.WSSubscriptions.Sub(float64(len(c.subs)))
	c.subs = nil
	metrics.WSConnections.Dec()
	return true
}

func (h *Hub) leaveLocked(contentID string, c *Client) {
	members := h.channels[contentID]
	delete(members, c)
	if len(members) == 0 {
		delete(h.channels, contentID)
	}
}

// Subscribe joins c to the channel of contentID and queues the current
// snapshot for it, so a reconnecting client resumes from current state.
// Subscribing twice is a no-op apart from resending the snapshot.
func (h *Hub) Subscribe(ctx context.Context, contentID string, c *Client) error {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return ErrClientGone
	}
	if _, already := c.subs[contentID]; !already {
		if h.config.MaxSubscriptions > 0 && len(c.subs) >= h.config.MaxSubscriptions {
			h.mu.Unlock()
			return fmt.Errorf("%w: limit is %d", ErrTooManySubscriptions, h.config.MaxSubscriptions)
		}
		members, ok := h.channels[contentID]
		if !ok {
			members = make(map[*Client]struct{})
			h.channels[contentID] = members
		}
		members[c] = struct{}{}
		c.subs[contentID] = struct{}{}
		metrics.WSSubscriptions.Inc()
	}
	h.mu.Unlock()

	h.deliver(c, Message{Type: MessageTypeSubscribed, ContentID: contentID})

	snap, ok := h.currentSnapshot(ctx, contentID)
	if ok {
		h.deliver(c, snapshotMessage(snap))
	}
	return nil
}

// Unsubscribe removes c from the channel of contentID. It reports whether c
// was subscribed.
func (h *Hub) Unsubscribe(contentID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.subs[contentID]; !ok {
		return false
	}
	delete(c.subs, contentID)
	h.leaveLocked(contentID, c)
	metrics.WSSubscriptions.Dec()
	return true
}

func (h *Hub) currentSnapshot(ctx context.Context, contentID string) (models.Snapshot, bool) {
	if h.reader != nil {
		item, err := h.reader.GetContent(ctx, contentID)
		if err == nil {
			return item.Snapshot(h.now()), true
		}
		logging.Warn().Err(err).Str("content_id", contentID).Msg("Cold read for subscribe failed")
	}
	return h.latest.Get(contentID)
}

// deliver queues msg for one client, dropping the client when its buffer is
// full.
func (h *Hub) deliver(c *Client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) {
	if h.removeLocked(c) {
		metrics.BroadcastDroppedClients.Inc()
		logging.Warn().Uint64("client_id", c.id).Msg("Dropped slow websocket client")
	}
}

// Publish hands a snapshot to the hub for every client subscribed to its
// content id. It never blocks on clients.
func (h *Hub) Publish(ctx context.Context, snap models.Snapshot) error {
	h.latest.Update(snap.ContentID, func(current models.Snapshot, found bool) models.Snapshot {
		if found && current.ObservedAt.After(snap.ObservedAt) {
			return current
		}
		return snap
	})

	select {
	case h.broadcast <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrHubBusy
	}
}

// Latest returns the newest snapshot that passed through the hub for
// contentID.
func (h *Hub) Latest(contentID string) (models.Snapshot, bool) {
	return h.latest.Get(contentID)
}

// Run fans snapshots out until ctx is canceled, then closes every client.
// Shutdown is checked before each broadcast so a full buffer cannot delay it.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case snap := <-h.broadcast:
			h.broadcastSnapshot(snap)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.Run(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastSnapshot sends snap to the content's subscribers in client id
// order.
func (h *Hub) broadcastSnapshot(snap models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.channels[snap.ContentID]
	if len(members) == 0 {
		return
	}
	clients := sortedClients(members)

	msg := snapshotMessage(snap)
	for _, c := range clients {
		select {
		case c.send <- msg:
			metrics.BroadcastDeliveredTotal.Inc()
		default:
			h.dropLocked(c)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range sortedClients(h.clients) {
		h.removeLocked(c)
	}
}

func sortedClients(set map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

func snapshotMessage(snap models.Snapshot) Message {
	return Message{Type: MessageTypeSnapshot, ContentID: snap.ContentID, Data: snap}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ChannelCount returns the number of content ids with at least one
// subscriber.
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Backlog returns how many snapshots wait in the broadcast buffer and its
// capacity.
func (h *Hub) Backlog() (queued, capacity int) {
	return len(h.broadcast), cap(h.broadcast)
}

// SubscriberCount returns the number of clients subscribed to contentID.
func (h *Hub) SubscriberCount(contentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[contentID])
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
