// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package virtualizer computes which chunks are near enough to the camera
// to need data and rendering.
//
// Given the camera translation and surface size it enumerates candidate
// chunk coordinates covering the buffered viewport, ranks them by distance
// from the view center, culls far candidates, and applies soft/hard
// population limits to bound memory under fast pans. The computation is
// pure and idempotent: identical camera and surface input always produces
// identical coordinate lists.
package virtualizer

import (
	"math"
	"sort"

	"github.com/tomtom215/atelier/internal/geometry"
)

// Config holds the population-control thresholds. They are configuration
// rather than constants so memory/perf tuning does not require code
// changes.
type Config struct {
	// Buffer expands the visible rectangle in world pixels so chunks
	// scroll into view before their edge is reached.
	Buffer float64

	// CullRadius discards any candidate whose center is farther than this
	// from the view center, in world pixels. Zero disables the cull.
	CullRadius float64

	// SoftLimit is the preferred maximum number of retained chunks.
	SoftLimit int

	// HardLimit is the absolute maximum; exceeding it truncates outright.
	// Memory protection wins over coverage: very fast pans may transiently
	// show uncovered chunks.
	HardLimit int

	// PriorityFraction of the viewport diagonal defines the "priority"
	// distance band that is always retained between the soft and hard
	// limits. Defaults to 0.8 when zero.
	PriorityFraction float64
}

// Result is the outcome of one virtualization pass.
type Result struct {
	// Visible lists retained coordinates in ascending distance order.
	Visible []geometry.ChunkCoord

	// ToLoad is the subset of Visible not yet present in the chunk set.
	ToLoad []geometry.ChunkCoord
}

// Virtualizer enumerates and ranks candidate chunks for a grid.
type Virtualizer struct {
	grid geometry.Grid
	cfg  Config
}

// New creates a Virtualizer.
func New(grid geometry.Grid, cfg Config) *Virtualizer {
	if cfg.PriorityFraction <= 0 {
		cfg.PriorityFraction = 0.8
	}
	if cfg.HardLimit > 0 && cfg.SoftLimit > cfg.HardLimit {
		cfg.SoftLimit = cfg.HardLimit
	}
	return &Virtualizer{grid: grid, cfg: cfg}
}

type candidate struct {
	coord    geometry.ChunkCoord
	distance float64
}

// Compute runs one virtualization pass. present reports whether a chunk
// coordinate already has a usable record; it is only consulted to split
// Visible into ToLoad and never mutated.
func (v *Virtualizer) Compute(cam geometry.Camera, surface geometry.Size, present func(geometry.ChunkCoord) bool) Result {
	bounds := v.grid.ViewportBounds(cam, surface, v.cfg.Buffer)
	minX, maxX, minY, maxY := v.grid.ChunkRange(bounds)
	centerX, centerY := geometry.ViewCenter(cam, surface)

	candidates := make([]candidate, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			coord := geometry.ChunkCoord{X: x, Y: y}
			cx, cy := v.grid.ChunkCenter(coord)
			d := math.Hypot(cx-centerX, cy-centerY)
			if v.cfg.CullRadius > 0 && d > v.cfg.CullRadius {
				continue
			}
			candidates = append(candidates, candidate{coord: coord, distance: d})
		}
	}

	// Stable ordering: distance ascending, then (y, x) so equidistant
	// chunks never reorder between passes.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		if candidates[i].coord.Y != candidates[j].coord.Y {
			return candidates[i].coord.Y < candidates[j].coord.Y
		}
		return candidates[i].coord.X < candidates[j].coord.X
	})

	retained := v.applyPopulationLimits(candidates, surface)

	result := Result{Visible: make([]geometry.ChunkCoord, 0, len(retained))}
	for _, c := range retained {
		result.Visible = append(result.Visible, c.coord)
		if present == nil || !present(c.coord) {
			result.ToLoad = append(result.ToLoad, c.coord)
		}
	}
	return result
}

// applyPopulationLimits enforces the soft/hard chunk limits on a
// distance-sorted candidate list.
func (v *Virtualizer) applyPopulationLimits(candidates []candidate, surface geometry.Size) []candidate {
	if v.cfg.SoftLimit <= 0 || len(candidates) <= v.cfg.SoftLimit {
		if v.cfg.HardLimit > 0 && len(candidates) > v.cfg.HardLimit {
			return candidates[:v.cfg.HardLimit]
		}
		return candidates
	}

	if v.cfg.HardLimit > 0 && len(candidates) > v.cfg.HardLimit {
		// Memory-protection fallback: truncate outright.
		return candidates[:v.cfg.HardLimit]
	}

	// Between the limits: always keep the priority band, then fill with
	// the nearest remainder up to the soft limit.
	priorityRadius := surface.Diagonal() * v.cfg.PriorityFraction
	retained := make([]candidate, 0, v.cfg.SoftLimit)
	var remainder []candidate
	for _, c := range candidates {
		if c.distance <= priorityRadius {
			retained = append(retained, c)
		} else {
			remainder = append(remainder, c)
		}
	}
	for _, c := range remainder {
		if len(retained) >= v.cfg.SoftLimit {
			break
		}
		retained = append(retained, c)
	}
	return retained
}
