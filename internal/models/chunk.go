// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package models

import (
	"time"

	"github.com/tomtom215/atelier/internal/geometry"
)

// ChunkState is the lifecycle state of a chunk record.
type ChunkState string

const (
	// ChunkStateEmpty marks a record created on first reference, before
	// any fetch has been issued.
	ChunkStateEmpty ChunkState = "empty"

	// ChunkStateLoading marks a record with an in-flight fetch.
	ChunkStateLoading ChunkState = "loading"

	// ChunkStateReady marks a record whose items and positions are final.
	// A ready record is immutable; replacing its content requires eviction
	// and re-creation, never in-place mutation.
	ChunkStateReady ChunkState = "ready"

	// ChunkStateError marks a record whose fetch failed. Error chunks are
	// retry-eligible: re-entering the visible set on a later pass triggers
	// a new fetch.
	ChunkStateError ChunkState = "error"
)

// Position is a final pixel placement of one artwork inside a chunk,
// relative to the chunk origin. The render surface performs no layout of
// its own.
type Position struct {
	ArtworkID string  `json:"artwork_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// ContentBounds is the extent of packed content inside a chunk.
type ContentBounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ChunkRecord is the cache entry for one chunk. Records are owned
// exclusively by the chunk engine: created on first reference, populated on
// fetch completion, evicted under the LRU discipline. Items and Positions
// are immutable once State is ready.
type ChunkRecord struct {
	// ID is a unique record identifier, fresh per creation. Two records for
	// the same coordinate at different times have different IDs, which lets
	// the render surface detect re-creation.
	ID string `json:"id"`

	// Coord is the chunk grid coordinate; Key() is the cache key.
	Coord geometry.ChunkCoord `json:"coord"`

	// Items are the placed artworks, duplicate-free within the record and,
	// in similarity mode, across all records of one focal session.
	Items []PlacedArtwork `json:"items"`

	// Positions are final chunk-local pixel placements, index-aligned
	// with Items.
	Positions []Position `json:"positions"`

	// Bounds is the packed content extent.
	Bounds ContentBounds `json:"bounds"`

	// State is the lifecycle state.
	State ChunkState `json:"state"`

	// Err holds the failure message for error-state records.
	Err string `json:"error,omitempty"`

	// LastAccessed is maintained by the engine for LRU eviction. Updated on
	// every read.
	LastAccessed time.Time `json:"-"`
}

// CanvasSnapshot is the read-only view handed to the render surface after
// every state-changing event.
type CanvasSnapshot struct {
	Camera        geometry.Camera   `json:"camera"`
	VisibleChunks []*ChunkRecord    `json:"visible_chunks"`
	LoadingKeys   []string          `json:"loading_keys"`
	ErrorKeys     map[string]string `json:"error_keys,omitempty"`

	// FocalID is the active focal artwork, empty in grid mode.
	FocalID string `json:"focal_id,omitempty"`
}
