// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package geometry provides the coordinate math for the infinite canvas.
//
// The canvas is an unbounded plane of fixed-size rectangular chunks laid
// edge-to-edge and addressed by integer grid coordinates. All functions in
// this package are pure: they never touch engine state and are safe to call
// from any goroutine.
//
// Two coordinate spaces are used throughout:
//
//   - World space: pixel coordinates on the unbounded plane. The camera
//     translation is applied to world space before rendering.
//   - Chunk space: integer (x, y) indices. Chunk (0, 0) spans world pixels
//     [0, ChunkWidth) x [0, ChunkHeight).
//
// The string form "x,y" of a chunk coordinate is the canonical cache key.
// Equal keys always denote the same spatial cell.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChunkCoord identifies a chunk by integer grid coordinates.
type ChunkCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key returns the canonical cache key "x,y" for this coordinate.
func (c ChunkCoord) Key() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// ParseKey parses a canonical "x,y" chunk key back into a coordinate.
func ParseKey(key string) (ChunkCoord, error) {
	sep := strings.IndexByte(key, ',')
	if sep < 0 {
		return ChunkCoord{}, fmt.Errorf("invalid chunk key %q: missing separator", key)
	}
	x, err := strconv.Atoi(key[:sep])
	if err != nil {
		return ChunkCoord{}, fmt.Errorf("invalid chunk key %q: %w", key, err)
	}
	y, err := strconv.Atoi(key[sep+1:])
	if err != nil {
		return ChunkCoord{}, fmt.Errorf("invalid chunk key %q: %w", key, err)
	}
	return ChunkCoord{X: x, Y: y}, nil
}

// Chebyshev returns the Chebyshev distance max(|dx|,|dy|) between two
// chunk coordinates. Ring index around a focal chunk is defined by this
// metric: ring n is the square band of chunks at Chebyshev distance n.
func (c ChunkCoord) Chebyshev(o ChunkCoord) int {
	dx := c.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dy := c.Y - o.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// Add returns the coordinate offset by o.
func (c ChunkCoord) Add(o ChunkCoord) ChunkCoord {
	return ChunkCoord{X: c.X + o.X, Y: c.Y + o.Y}
}

// Camera is the pixel translation applied to the world. It is mutated only
// by the pan controller and read everywhere else.
type Camera struct {
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// Size is a viewport surface size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Diagonal returns the surface diagonal length in pixels.
func (s Size) Diagonal() float64 {
	return math.Hypot(s.Width, s.Height)
}

// Bounds is an axis-aligned rectangle in world pixels.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Grid converts between world pixels and chunk indices for a fixed chunk
// extent. The zero value is unusable; construct with NewGrid.
type Grid struct {
	chunkWidth  float64
	chunkHeight float64
}

// NewGrid creates a Grid with the given chunk extent in world pixels.
// Non-positive extents fall back to 1 to keep the math well defined.
func NewGrid(chunkWidth, chunkHeight float64) Grid {
	if chunkWidth <= 0 {
		chunkWidth = 1
	}
	if chunkHeight <= 0 {
		chunkHeight = 1
	}
	return Grid{chunkWidth: chunkWidth, chunkHeight: chunkHeight}
}

// ChunkWidth returns the chunk extent along the x axis in world pixels.
func (g Grid) ChunkWidth() float64 { return g.chunkWidth }

// ChunkHeight returns the chunk extent along the y axis in world pixels.
func (g Grid) ChunkHeight() float64 { return g.chunkHeight }

// WorldToChunk maps a world-pixel position to the chunk containing it.
// Inverse of ChunkToWorld for chunk origins.
func (g Grid) WorldToChunk(worldX, worldY float64) ChunkCoord {
	return ChunkCoord{
		X: int(math.Floor(worldX / g.chunkWidth)),
		Y: int(math.Floor(worldY / g.chunkHeight)),
	}
}

// ChunkToWorld returns the world-pixel origin (top-left corner) of a chunk.
func (g Grid) ChunkToWorld(c ChunkCoord) (worldX, worldY float64) {
	return float64(c.X) * g.chunkWidth, float64(c.Y) * g.chunkHeight
}

// ChunkCenter returns the world-pixel center of a chunk.
func (g Grid) ChunkCenter(c ChunkCoord) (worldX, worldY float64) {
	x, y := g.ChunkToWorld(c)
	return x + g.chunkWidth/2, y + g.chunkHeight/2
}

// ViewportBounds computes the world-space rectangle covered by the surface
// under the given camera translation, expanded by buffer pixels on every
// side so chunks scroll into view before their edge is reached.
//
// The camera translation moves the world, so the visible world region is
// the negated translation.
func (g Grid) ViewportBounds(cam Camera, surface Size, buffer float64) Bounds {
	return Bounds{
		MinX: -cam.TranslateX - buffer,
		MaxX: -cam.TranslateX + surface.Width + buffer,
		MinY: -cam.TranslateY - buffer,
		MaxY: -cam.TranslateY + surface.Height + buffer,
	}
}

// ChunkRange returns the inclusive chunk index range covering the bounds.
// Rounding is generous (floor/ceil) so partially covered chunks are included.
func (g Grid) ChunkRange(b Bounds) (minX, maxX, minY, maxY int) {
	minX = int(math.Floor(b.MinX / g.chunkWidth))
	maxX = int(math.Ceil(b.MaxX/g.chunkWidth)) - 1
	minY = int(math.Floor(b.MinY / g.chunkHeight))
	maxY = int(math.Ceil(b.MaxY/g.chunkHeight)) - 1
	if maxX < minX {
		maxX = minX
	}
	if maxY < minY {
		maxY = minY
	}
	return minX, maxX, minY, maxY
}

// ViewCenter returns the world-space point at the center of the surface
// under the given camera translation.
func ViewCenter(cam Camera, surface Size) (worldX, worldY float64) {
	return -cam.TranslateX + surface.Width/2, -cam.TranslateY + surface.Height/2
}
