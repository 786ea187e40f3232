// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/engagecast/internal/logging"
)

// Upgrader returns a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Hub) Upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin rejects requests without an Origin header unless every origin
// is allowed, and otherwise requires a listed origin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" {
			return true
		}
	}
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.config.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeOrigin(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// ServeWS upgrades the request, registers the client and subscribes it to
// contentID. The caller validates contentID. The connection outlives the
// request, so ctx is the server's base context rather than r.Context().
func (h *Hub) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, contentID string) {
	upgrader := h.Upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := NewClient(h, conn)
	h.Register(client)
	client.Start(ctx)

	if err := h.Subscribe(ctx, contentID, client); err != nil {
		logging.Debug().Err(err).Uint64("client_id", client.id).Msg("Initial subscribe failed")
	}
}

// sanitizeOrigin strips control characters before an origin is logged.
func sanitizeOrigin(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
