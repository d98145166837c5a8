// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package events carries canvas analytics events over an in-process
// Watermill pub/sub. Publishers fire and forget; the recorder subscriber
// persists events to the artwork store without blocking the engine.
package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/atelier/internal/logging"
)

// Topics for canvas analytics events.
const (
	TopicChunkReady   = "canvas.chunk_ready"
	TopicFocalChanged = "canvas.focal_changed"
	TopicSessionClose = "canvas.session_closed"
)

// ChunkReadyEvent records one chunk reaching the ready state.
type ChunkReadyEvent struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	ChunkKey   string    `json:"chunk_key"`
	ItemCount  int       `json:"item_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FocalChangedEvent records a similarity-mode focal change.
type FocalChangedEvent struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	FocalID    string    `json:"focal_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionClosedEvent records a canvas session ending.
type SessionClosedEvent struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Bus is the in-process event bus. It satisfies the engine's Publisher
// contract; publish failures are logged and dropped because analytics must
// never stall the canvas.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the gochannel pub/sub with a zerolog-backed Watermill
// logger.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, NewWatermillLogger()),
	}
}

// Close shuts the pub/sub down, terminating all subscribers.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Subscribe returns a channel of messages for the topic. The subscription
// lives until the context given here is cancelled or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) publish(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		logging.Warn().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}

// ChunkReady implements engine.Publisher.
func (b *Bus) ChunkReady(sessionID, chunkKey string, itemCount int) {
	b.publish(TopicChunkReady, ChunkReadyEvent{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		ChunkKey:   chunkKey,
		ItemCount:  itemCount,
		OccurredAt: time.Now().UTC(),
	})
}

// FocalChanged implements engine.Publisher.
func (b *Bus) FocalChanged(sessionID, focalID string) {
	b.publish(TopicFocalChanged, FocalChangedEvent{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		FocalID:    focalID,
		OccurredAt: time.Now().UTC(),
	})
}

// SessionClosed implements engine.Publisher.
func (b *Bus) SessionClosed(sessionID string) {
	b.publish(TopicSessionClose, SessionClosedEvent{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
	})
}
