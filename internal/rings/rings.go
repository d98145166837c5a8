// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package rings turns a similarity-ranked artwork pool into a deterministic
// per-chunk assignment around a focal chunk.
//
// Chunks are walked in concentric square rings (ring index = Chebyshev
// distance from the focal chunk). Each ring carries a minimum similarity
// threshold that never increases with ring index, so quality decays
// monotonically with distance from the focal artwork. Assignment is a
// greedy single forward pass over the pre-sorted pool: an item is never
// reconsidered for a later, stricter ring, which also guarantees no
// identity appears in two chunks.
package rings

import (
	"sort"

	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/models"
)

// Config controls the ring assignment.
type Config struct {
	// Capacity is the maximum number of items per chunk.
	Capacity int

	// Thresholds holds the minimum similarity score per ring, index 0 for
	// ring 1. Rings beyond the slice accept any score. Values must be
	// non-increasing; Normalize enforces it.
	Thresholds []float64

	// MaxRing is the outermost ring that receives ranked items.
	MaxRing int
}

// Normalize applies defaults and forces the threshold sequence to be
// non-increasing so outer rings never demand more similarity than inner
// ones.
func (c Config) Normalize() Config {
	if c.Capacity <= 0 {
		c.Capacity = 20
	}
	if c.MaxRing <= 0 {
		c.MaxRing = 3
	}
	for i := 1; i < len(c.Thresholds); i++ {
		if c.Thresholds[i] > c.Thresholds[i-1] {
			c.Thresholds[i] = c.Thresholds[i-1]
		}
	}
	return c
}

// Threshold returns the minimum similarity score for a ring.
func (c Config) Threshold(ring int) float64 {
	if ring <= 0 {
		return 0
	}
	if ring-1 < len(c.Thresholds) {
		return c.Thresholds[ring-1]
	}
	return 0
}

// ChunkAssignment is the plan for one chunk around the focal chunk.
type ChunkAssignment struct {
	// Offset is the chunk coordinate relative to the focal chunk.
	Offset geometry.ChunkCoord

	// Ring is the Chebyshev distance of this chunk from the focal chunk.
	Ring int

	// Ranked are the similarity-ranked items assigned to this chunk, in
	// descending score order.
	Ranked []models.ScoredArtwork

	// FillerSlots is the remaining capacity to pad with unranked filler.
	// Filler never displaces a ranked item.
	FillerSlots int
}

// Assign partitions the pool across rings 1..MaxRing.
//
// The focal item itself is removed from the pool; duplicate identities are
// collapsed keeping the first occurrence. The surviving pool is sorted by
// score descending with a stable sort, so ties keep pool order and the
// result is reproducible. Each chunk consumes from the front of the pool
// while the next item still meets the chunk's ring threshold and capacity
// remains; once an item fails the threshold the chunk stops consuming,
// because by sort order no later item is more similar.
func Assign(pool []models.ScoredArtwork, focalID string, cfg Config) []ChunkAssignment {
	cfg = cfg.Normalize()

	ranked := make([]models.ScoredArtwork, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, item := range pool {
		if item.ID == focalID {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		ranked = append(ranked, item)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var assignments []ChunkAssignment
	next := 0
	for ring := 1; ring <= cfg.MaxRing; ring++ {
		threshold := cfg.Threshold(ring)
		for _, offset := range geometry.RingOffsets(ring) {
			a := ChunkAssignment{Offset: offset, Ring: ring}
			for len(a.Ranked) < cfg.Capacity && next < len(ranked) {
				if ranked[next].Score < threshold {
					break
				}
				a.Ranked = append(a.Ranked, ranked[next])
				next++
			}
			a.FillerSlots = cfg.Capacity - len(a.Ranked)
			assignments = append(assignments, a)
		}
	}
	return assignments
}
