// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/engine"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/models"
)

// stubSource serves fixed artworks for any chunk.
type stubSource struct{}

func (stubSource) FetchChunk(ctx context.Context, coord geometry.ChunkCoord, count int, exclude []string, seed int64) ([]models.Artwork, error) {
	items := make([]models.Artwork, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, models.Artwork{
			ID:     fmt.Sprintf("art-%s-%d", coord.Key(), i),
			Width:  400,
			Height: 300,
		})
	}
	return items, nil
}

func (s stubSource) FetchSimilar(ctx context.Context, focalID string) (*models.SimilarPool, error) {
	pool := &models.SimilarPool{FocalID: focalID, Total: 6}
	for i := 0; i < 6; i++ {
		pool.Items = append(pool.Items, models.ScoredArtwork{
			Artwork: models.Artwork{ID: fmt.Sprintf("sim-%d", i), Width: 400, Height: 300},
			Score:   1 - float64(i)*0.05,
		})
	}
	return pool, nil
}

func (s stubSource) FetchBatch(ctx context.Context, coords []geometry.ChunkCoord, count int, exclude []string, seed int64) (map[string][]models.Artwork, error) {
	result := make(map[string][]models.Artwork, len(coords))
	for _, c := range coords {
		items, _ := s.FetchChunk(ctx, c, count, exclude, seed)
		result[c.Key()] = items
	}
	return result, nil
}

func sessionConfig() *config.Config {
	return &config.Config{
		Canvas: config.CanvasConfig{
			ChunkWidth: 100, ChunkHeight: 100,
			SoftLimit: 50, HardLimit: 100,
			MaxCachedChunks: 16, ItemsPerChunk: 2,
			Columns: 2, ColumnWidth: 40, Gap: 4, TargetMaxHeight: 400,
			ClickThreshold: 5, DefaultSeed: 7,
		},
		Rings: config.RingsConfig{Capacity: 2, Thresholds: []float64{0.2}, MaxRing: 1},
		Source: config.SourceConfig{
			FetchTimeout: time.Second,
			Concurrency:  4,
		},
	}
}

// dialSession upgrades a test server connection into a running canvas
// session and returns the client side.
func dialSession(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = hub.Serve(ctx)
	}()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		eng := engine.New("test-session", sessionConfig(), stubSource{}, nil)
		client := NewClient("test-session", hub, conn, eng)
		client.Run(ctx)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		data = raw
	}
	if err := conn.WriteJSON(Message{Type: msgType, Data: data}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Type == msgType {
			return frame.Data
		}
	}
	t.Fatalf("no %s frame received", msgType)
	return nil
}

func TestSessionViewportProducesSnapshot(t *testing.T) {
	hub := NewHub()
	conn := dialSession(t, hub)

	send(t, conn, MessageTypeViewport, viewportPayload{Width: 100, Height: 100})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data := readUntil(t, conn, MessageTypeSnapshot)
		var snap models.CanvasSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if len(snap.VisibleChunks) == 1 && len(snap.LoadingKeys) == 0 {
			if len(snap.VisibleChunks[0].Items) != 2 {
				t.Errorf("chunk has %d items, want 2", len(snap.VisibleChunks[0].Items))
			}
			return
		}
	}
	t.Fatal("never saw a fully loaded snapshot")
}

func TestSessionPingPong(t *testing.T) {
	hub := NewHub()
	conn := dialSession(t, hub)

	send(t, conn, MessageTypePing, nil)
	readUntil(t, conn, MessageTypePong)
}

func TestSessionClickAfterDragIsSuppressed(t *testing.T) {
	hub := NewHub()
	conn := dialSession(t, hub)

	send(t, conn, MessageTypeViewport, viewportPayload{Width: 100, Height: 100})
	send(t, conn, MessageTypePointerDown, pointerPayload{X: 10, Y: 10})
	send(t, conn, MessageTypePointerMove, pointerPayload{X: 60, Y: 10})
	send(t, conn, MessageTypePointerUp, nil)
	send(t, conn, MessageTypeClick, clickPayload{ArtworkID: "art-0,0-0"})

	data := readUntil(t, conn, MessageTypeClickResult)
	var result clickResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal click result: %v", err)
	}
	if !result.Suppressed {
		t.Error("click after 50px drag was not suppressed")
	}
}

func TestSessionFocusEntersSimilarityMode(t *testing.T) {
	hub := NewHub()
	conn := dialSession(t, hub)

	send(t, conn, MessageTypeViewport, viewportPayload{Width: 100, Height: 100})
	send(t, conn, MessageTypeFocus, focusPayload{FocalID: "sim-0"})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data := readUntil(t, conn, MessageTypeSnapshot)
		var snap models.CanvasSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if snap.FocalID == "sim-0" {
			return
		}
	}
	t.Fatal("focal never appeared in snapshots")
}

func TestSessionUnknownMessageType(t *testing.T) {
	hub := NewHub()
	conn := dialSession(t, hub)

	send(t, conn, "teleport", nil)
	readUntil(t, conn, MessageTypeError)
}
