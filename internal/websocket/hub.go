// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package websocket carries canvas sessions over WebSocket connections.
// Each connected client owns a private chunk engine; messages translate
// pointer and viewport events into engine commands, and engine snapshots
// flow back as JSON frames.
package websocket

import (
	"context"
	"sync"

	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/metrics"
)

// Message types for canvas session frames.
const (
	// Inbound.
	MessageTypeViewport    = "viewport"
	MessageTypePointerDown = "pointer_down"
	MessageTypePointerMove = "pointer_move"
	MessageTypePointerUp   = "pointer_up"
	MessageTypeClick       = "click"
	MessageTypeFocus       = "focus"
	MessageTypeClearFocus  = "clear_focus"
	MessageTypePing        = "ping"

	// Outbound.
	MessageTypeSnapshot    = "snapshot"
	MessageTypeClickResult = "click_result"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Hub tracks the active canvas sessions. The prefetch timer walks the
// registry to re-evaluate every session's visible set on a fixed interval.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	register chan *Client
	remove   chan *Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		register: make(chan *Client, 16),
		remove:   make(chan *Client, 16),
	}
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve processes session lifecycle events until ctx is cancelled, then
// closes every remaining session. Runs under the supervision tree.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			total := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveSessions.Set(float64(total))
			logging.Info().
				Str("session_id", client.sessionID).
				Int("total_sessions", total).
				Msg("Canvas session connected")
		case client := <-h.remove:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; ok {
				delete(h.clients, client.sessionID)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveSessions.Set(float64(total))
			logging.Info().
				Str("session_id", client.sessionID).
				Int("total_sessions", total).
				Msg("Canvas session disconnected")
		}
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(client *Client) {
	h.remove <- client
}

// EnsureAll asks every session's engine to re-evaluate its visible set.
// Called by the prefetch timer.
func (h *Hub) EnsureAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.engine.Ensure()
	}
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Session returns the client for a session ID, or nil.
func (h *Hub) Session(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	metrics.ActiveSessions.Set(0)
}
