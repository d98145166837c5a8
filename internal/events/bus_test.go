// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestBusPublishesChunkReady(t *testing.T) {
	bus := NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicChunkReady)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	bus.ChunkReady("sess-1", "2,-3", 20)

	select {
	case msg := <-msgs:
		var ev ChunkReadyEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		msg.Ack()

		if ev.SessionID != "sess-1" || ev.ChunkKey != "2,-3" || ev.ItemCount != 20 {
			t.Errorf("event = %+v", ev)
		}
		if ev.EventID == "" {
			t.Error("EventID is empty")
		}
		if ev.OccurredAt.IsZero() {
			t.Error("OccurredAt is zero")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

// recordingStore captures persisted events for assertions.
type recordingStore struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingStore) RecordCanvasEvent(ctx context.Context, id, sessionID, eventType, chunkKey, focalID string, itemCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRecorderPersistsAllTopics(t *testing.T) {
	bus := NewBus()
	defer func() {
		_ = bus.Close()
	}()

	store := &recordingStore{}
	recorder := NewRecorder(bus, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = recorder.Serve(ctx)
		close(done)
	}()

	// Give the subscriptions a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	bus.ChunkReady("sess-1", "0,0", 5)
	bus.FocalChanged("sess-1", "art-000001")
	bus.SessionClosed("sess-1")

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := store.count(); got != 3 {
		t.Errorf("persisted %d events, want 3", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop on context cancellation")
	}
}
