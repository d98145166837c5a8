// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/atelier/internal/logging"
)

// EventStore persists analytics event rows.
type EventStore interface {
	RecordCanvasEvent(ctx context.Context, id, sessionID, eventType, chunkKey, focalID string, itemCount int) error
}

// Recorder subscribes to the canvas topics and persists every event. It
// runs under the supervision tree; a persistence failure is logged and the
// message acked anyway, because analytics rows are not worth a retry storm.
type Recorder struct {
	bus   *Bus
	store EventStore
}

// NewRecorder wires a recorder to the bus and store.
func NewRecorder(bus *Bus, store EventStore) *Recorder {
	return &Recorder{bus: bus, store: store}
}

// String identifies the service in supervisor logs.
func (r *Recorder) String() string { return "event-recorder" }

// Serve consumes all canvas topics until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context) error {
	chunkReady, err := r.bus.Subscribe(ctx, TopicChunkReady)
	if err != nil {
		return err
	}
	focalChanged, err := r.bus.Subscribe(ctx, TopicFocalChanged)
	if err != nil {
		return err
	}
	sessionClosed, err := r.bus.Subscribe(ctx, TopicSessionClose)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-chunkReady:
			if !ok {
				return nil
			}
			r.handleChunkReady(ctx, msg)
		case msg, ok := <-focalChanged:
			if !ok {
				return nil
			}
			r.handleFocalChanged(ctx, msg)
		case msg, ok := <-sessionClosed:
			if !ok {
				return nil
			}
			r.handleSessionClosed(ctx, msg)
		}
	}
}

func (r *Recorder) handleChunkReady(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var ev ChunkReadyEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Warn().Err(err).Str("topic", TopicChunkReady).Msg("Malformed event payload")
		return
	}
	if err := r.store.RecordCanvasEvent(ctx, ev.EventID, ev.SessionID, "chunk_ready", ev.ChunkKey, "", ev.ItemCount); err != nil {
		logging.Warn().Err(err).Str("event_id", ev.EventID).Msg("Failed to persist chunk_ready event")
	}
}

func (r *Recorder) handleFocalChanged(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var ev FocalChangedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Warn().Err(err).Str("topic", TopicFocalChanged).Msg("Malformed event payload")
		return
	}
	if err := r.store.RecordCanvasEvent(ctx, ev.EventID, ev.SessionID, "focal_changed", "", ev.FocalID, 0); err != nil {
		logging.Warn().Err(err).Str("event_id", ev.EventID).Msg("Failed to persist focal_changed event")
	}
}

func (r *Recorder) handleSessionClosed(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var ev SessionClosedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Warn().Err(err).Str("topic", TopicSessionClose).Msg("Malformed event payload")
		return
	}
	if err := r.store.RecordCanvasEvent(ctx, ev.EventID, ev.SessionID, "session_closed", "", "", 0); err != nil {
		logging.Warn().Err(err).Str("event_id", ev.EventID).Msg("Failed to persist session_closed event")
	}
}
