// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package artwork implements the backend data source consumed by the
// chunk engine: a DuckDB store serving artwork rows, a Badger-backed
// similarity pool cache, and a circuit-breaker wrapper for resilience.
package artwork

import (
	"context"
	"errors"

	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/models"
)

// Sentinel errors for source failures.
var (
	// ErrNotFound indicates the requested focal artwork does not exist.
	ErrNotFound = errors.New("artwork not found")

	// ErrSourceUnavailable indicates the source is temporarily refusing
	// requests (e.g. the circuit breaker is open).
	ErrSourceUnavailable = errors.New("artwork source unavailable")
)

// Source is the collaborator contract the chunk engine depends on.
//
// FetchChunk is deterministic for a given (coord, seed) when no exclusion
// is supplied, and must omit every excluded identity from its result.
// FetchSimilar returns the full ranked pool once per focal change; the
// engine partitions it itself.
type Source interface {
	// FetchChunk returns up to count artworks for one chunk coordinate.
	FetchChunk(ctx context.Context, coord geometry.ChunkCoord, count int, exclude []string, seed int64) ([]models.Artwork, error)

	// FetchSimilar returns the similarity-ranked pool for a focal artwork.
	FetchSimilar(ctx context.Context, focalID string) (*models.SimilarPool, error)

	// FetchBatch resolves several coordinates in one call, keyed by the
	// canonical chunk key. The exclusion set applies across the whole
	// batch: no identity appears twice in the returned map.
	FetchBatch(ctx context.Context, coords []geometry.ChunkCoord, count int, exclude []string, seed int64) (map[string][]models.Artwork, error)
}
