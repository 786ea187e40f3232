// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/validation"
)

// clientIDCounter gives clients monotonically increasing ids so broadcasts
// visit them in a stable order.
var clientIDCounter atomic.Uint64

// ControlMessage is an inbound frame from a subscriber.
type ControlMessage struct {
	Type      string `json:"type"`
	ContentID string `json:"content_id,omitempty"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent in error frames.
const (
	ErrorCodeRateLimited   = "RATE_LIMITED"
	ErrorCodeInvalidID     = "INVALID_CONTENT_ID"
	ErrorCodeUnknownType   = "UNKNOWN_TYPE"
	ErrorCodeSubscriptions = "TOO_MANY_SUBSCRIPTIONS"
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter

	// subs is guarded by hub.mu.
	subs map[string]struct{}
}

// NewClient creates a Client. The caller registers it with hub.Register.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	cfg := hub.Config()
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(cfg.ControlRate), cfg.ControlBurst),
		subs:    make(map[string]struct{}),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// readPump reads control messages until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	cfg := c.hub.Config()
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		var msg ControlMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}
		c.handleControl(ctx, msg)
	}
}

// handleControl applies one inbound control message.
func (c *Client) handleControl(ctx context.Context, msg ControlMessage) {
	if !c.limiter.Allow() {
		c.replyError(msg.ContentID, ErrorCodeRateLimited, "too many control messages")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.hub.deliver(c, Message{Type: MessageTypePong})
	case MessageTypeSubscribe:
		if !validation.ValidContentID(msg.ContentID) {
			c.replyError(msg.ContentID, ErrorCodeInvalidID, "invalid content id")
			return
		}
		if err := c.hub.Subscribe(ctx, msg.ContentID, c); err != nil {
			if errors.Is(err, ErrTooManySubscriptions) {
				c.replyError(msg.ContentID, ErrorCodeSubscriptions, err.Error())
			}
			return
		}
	case MessageTypeUnsubscribe:
		if c.hub.Unsubscribe(msg.ContentID, c) {
			c.hub.deliver(c, Message{Type: MessageTypeUnsubscribed, ContentID: msg.ContentID})
		}
	default:
		c.replyError(msg.ContentID, ErrorCodeUnknownType, "unknown message type")
	}
}

func (c *Client) replyError(contentID, code, message string) {
	c.hub.deliver(c, Message{
		Type:      MessageTypeError,
		ContentID: contentID,
		Data:      ErrorData{Code: code, Message: message},
	})
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	cfg := c.hub.Config()
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client. ctx bounds the cold
// reads made for subscribe requests.
func (c *Client) Start(ctx context.Context) {
	go c.writePump()
	go c.readPump(ctx)
}
