// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package websocket

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/atelier/internal/engine"
	"github.com/tomtom215/atelier/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Message is one frame in either direction. Inbound data is decoded per
// message type; outbound data is whatever the type calls for.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type viewportPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type pointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type clickPayload struct {
	ArtworkID string `json:"artwork_id"`
}

type focusPayload struct {
	FocalID string `json:"focal_id"`
}

type clickResult struct {
	ArtworkID  string `json:"artwork_id"`
	Suppressed bool   `json:"suppressed"`
}

// Client is one canvas session: a WebSocket connection paired with its
// private chunk engine.
type Client struct {
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	engine    *engine.Engine
	send      chan outMessage
	cancel    context.CancelFunc
}

// NewClient pairs a connection with a fresh engine for the session.
func NewClient(sessionID string, hub *Hub, conn *websocket.Conn, eng *engine.Engine) *Client {
	return &Client{
		sessionID: sessionID,
		hub:       hub,
		conn:      conn,
		engine:    eng,
		send:      make(chan outMessage, 64),
	}
}

// SessionID returns the session identifier.
func (c *Client) SessionID() string { return c.sessionID }

// Engine exposes the session engine, used by the snapshot REST endpoint.
func (c *Client) Engine() *engine.Engine { return c.engine }

// Run drives the session until the connection drops or ctx is cancelled.
// It blocks in the read pump; the engine loop, snapshot forwarder, and
// write pump run as session goroutines that stop with it.
func (c *Client) Run(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	go func() {
		_ = c.engine.Run(sessionCtx)
	}()
	go c.forwardSnapshots(sessionCtx)
	go c.writePump(sessionCtx)

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	c.readPump()
}

// close tears the session down from outside the read pump.
func (c *Client) close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// forwardSnapshots turns engine change notifications into snapshot frames.
// Notifications coalesce, so a burst of state changes produces one frame
// with the latest state rather than a frame per change.
func (c *Client) forwardSnapshots(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.engine.Notify():
			snap := c.engine.Snapshot()
			c.enqueue(outMessage{Type: MessageTypeSnapshot, Data: snap})
		}
	}
}

// enqueue drops the frame if the send buffer is full; the next snapshot
// supersedes it anyway.
func (c *Client) enqueue(msg outMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("session_id", c.sessionID).Msg("Unexpected websocket close")
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Type {
	case MessageTypeViewport:
		var p viewportPayload
		if !c.decode(msg, &p) {
			return
		}
		c.engine.SetViewport(p.Width, p.Height)

	case MessageTypePointerDown:
		var p pointerPayload
		if !c.decode(msg, &p) {
			return
		}
		c.engine.PointerDown(p.X, p.Y)

	case MessageTypePointerMove:
		var p pointerPayload
		if !c.decode(msg, &p) {
			return
		}
		c.engine.PointerMove(p.X, p.Y)

	case MessageTypePointerUp:
		c.engine.PointerUp()

	case MessageTypeClick:
		var p clickPayload
		if !c.decode(msg, &p) {
			return
		}
		acted := c.engine.Click(p.ArtworkID)
		c.enqueue(outMessage{Type: MessageTypeClickResult, Data: clickResult{
			ArtworkID:  p.ArtworkID,
			Suppressed: !acted,
		}})

	case MessageTypeFocus:
		var p focusPayload
		if !c.decode(msg, &p) {
			return
		}
		c.engine.Focus(p.FocalID)

	case MessageTypeClearFocus:
		c.engine.ClearFocus()

	case MessageTypePing:
		c.enqueue(outMessage{Type: MessageTypePong})

	default:
		c.enqueue(outMessage{Type: MessageTypeError, Data: map[string]string{
			"message": "unknown message type: " + msg.Type,
		}})
	}
}

func (c *Client) decode(msg Message, into interface{}) bool {
	if err := json.Unmarshal(msg.Data, into); err != nil {
		logging.Debug().
			Err(err).
			Str("session_id", c.sessionID).
			Str("type", msg.Type).
			Msg("Malformed message payload")
		c.enqueue(outMessage{Type: MessageTypeError, Data: map[string]string{
			"message": "malformed payload for " + msg.Type,
		}})
		return false
	}
	return true
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug().Err(err).Str("session_id", c.sessionID).Msg("Failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
