// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package geometry

// RingOffsets returns the chunk offsets forming the concentric square ring
// at the given Chebyshev distance from the origin.
//
// Ring 0 is the single focal chunk. Ring n (n > 0) contains the 8n chunks
// whose max(|x|,|y|) equals n, emitted in a deterministic clockwise walk
// starting at the top-left corner (-n, -n). Determinism matters: the ring
// assignment algorithm consumes offsets in this exact order, and a rebuilt
// layout must reproduce it.
func RingOffsets(ring int) []ChunkCoord {
	if ring < 0 {
		return nil
	}
	if ring == 0 {
		return []ChunkCoord{{X: 0, Y: 0}}
	}

	offsets := make([]ChunkCoord, 0, 8*ring)

	// Top edge, left to right: (-n..n, -n)
	for x := -ring; x <= ring; x++ {
		offsets = append(offsets, ChunkCoord{X: x, Y: -ring})
	}
	// Right edge, top to bottom, corners already emitted: (n, -n+1..n-1)
	for y := -ring + 1; y <= ring-1; y++ {
		offsets = append(offsets, ChunkCoord{X: ring, Y: y})
	}
	// Bottom edge, right to left: (n..-n, n)
	for x := ring; x >= -ring; x-- {
		offsets = append(offsets, ChunkCoord{X: x, Y: ring})
	}
	// Left edge, bottom to top: (-n, n-1..-n+1)
	for y := ring - 1; y >= -ring+1; y-- {
		offsets = append(offsets, ChunkCoord{X: -ring, Y: y})
	}

	return offsets
}

// RingWalk returns all chunk offsets from ring 0 through maxRing inclusive,
// ring by ring. The focal chunk itself is first.
func RingWalk(maxRing int) []ChunkCoord {
	total := 1
	for r := 1; r <= maxRing; r++ {
		total += 8 * r
	}
	walk := make([]ChunkCoord, 0, total)
	for r := 0; r <= maxRing; r++ {
		walk = append(walk, RingOffsets(r)...)
	}
	return walk
}
