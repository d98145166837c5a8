// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package models defines the shared data structures exchanged between the
// artwork store, the chunk engine, and the API layer.
package models

// Artwork is a positionable item on the canvas. The engine never inspects
// image bytes; it only needs an identity for deduplication and the declared
// pixel dimensions for aspect-ratio layout.
type Artwork struct {
	// ID is the unique artwork identifier used for deduplication.
	ID string `json:"id"`

	// Title is the artwork title.
	Title string `json:"title"`

	// Artist is the attributed artist name.
	Artist string `json:"artist,omitempty"`

	// Year is the creation year, 0 if unknown.
	Year int `json:"year,omitempty"`

	// Width and Height are the declared source dimensions in pixels.
	// Only their ratio matters for layout.
	Width  int `json:"width"`
	Height int `json:"height"`

	// ImageURL points at the rendered image; opaque to the engine.
	ImageURL string `json:"image_url"`
}

// AspectRatio returns width/height, defaulting to 1 for degenerate
// declared dimensions so the packer always has a usable rectangle.
func (a Artwork) AspectRatio() float64 {
	if a.Width <= 0 || a.Height <= 0 {
		return 1
	}
	return float64(a.Width) / float64(a.Height)
}

// ScoredArtwork is an artwork carrying a similarity score in [0,1]
// relative to a focal artwork.
type ScoredArtwork struct {
	Artwork
	Score float64 `json:"score"`
}

// PlacedArtwork is an artwork placed into a chunk. Filler marks items drawn
// from the unranked filler source rather than the similarity-ranked pool.
type PlacedArtwork struct {
	Artwork
	Filler bool     `json:"filler,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// SimilarPool is the full ranked pool returned once per focal change.
// The engine partitions it across rings itself.
type SimilarPool struct {
	// FocalID is the artwork the pool was ranked against.
	FocalID string `json:"focal_id"`

	// Items is the scored pool, unsorted; the ring assignment sorts it.
	Items []ScoredArtwork `json:"items"`

	// Total is the number of candidates considered server-side.
	Total int `json:"total"`
}
