// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package layout places variable-aspect-ratio artworks inside a chunk's
// fixed width using a greedy shortest-column masonry strategy.
//
// Packing is deterministic: identical input order and dimensions always
// yield identical positions, so a chunk rebuilt from cache reproduces a
// pixel-identical layout.
package layout

import (
	"github.com/tomtom215/atelier/internal/models"
)

// Packer packs artworks into a fixed number of columns.
type Packer struct {
	// Columns is the number of masonry columns per chunk.
	Columns int

	// ColumnWidth is the rendered item width in pixels; every item is
	// scaled to this width preserving its declared aspect ratio.
	ColumnWidth float64

	// Gap is the fixed spacing between items, both axes.
	Gap float64

	// TargetMaxHeight is the preferred column height ceiling. Columns may
	// exceed it when no column has room; it only steers column choice.
	TargetMaxHeight float64
}

// NewPacker creates a Packer, applying minimal defaults for zero values.
func NewPacker(columns int, columnWidth, gap, targetMaxHeight float64) Packer {
	if columns <= 0 {
		columns = 1
	}
	if columnWidth <= 0 {
		columnWidth = 200
	}
	return Packer{
		Columns:         columns,
		ColumnWidth:     columnWidth,
		Gap:             gap,
		TargetMaxHeight: targetMaxHeight,
	}
}

// Pack places items in input order and returns their chunk-local positions
// together with the packed content bounds.
//
// Column choice: the column whose current height plus the gap leaves the
// least wasted space below TargetMaxHeight after placing the item; when no
// column still has room under the target, the globally shortest column.
func (p Packer) Pack(items []models.PlacedArtwork) ([]models.Position, models.ContentBounds) {
	positions := make([]models.Position, 0, len(items))
	heights := make([]float64, p.Columns)

	for _, item := range items {
		w := p.ColumnWidth
		h := w / item.AspectRatio()

		col := p.chooseColumn(heights, h)

		y := heights[col]
		if y > 0 {
			y += p.Gap
		}
		positions = append(positions, models.Position{
			ArtworkID: item.ID,
			X:         float64(col) * (w + p.Gap),
			Y:         y,
			Width:     w,
			Height:    h,
		})
		heights[col] = y + h
	}

	var maxHeight float64
	for _, h := range heights {
		if h > maxHeight {
			maxHeight = h
		}
	}
	width := float64(p.Columns)*p.ColumnWidth + float64(p.Columns-1)*p.Gap
	if len(items) == 0 {
		width = 0
	}

	return positions, models.ContentBounds{Width: width, Height: maxHeight}
}

// chooseColumn picks the target column for an item of the given height.
func (p Packer) chooseColumn(heights []float64, itemHeight float64) int {
	if p.TargetMaxHeight > 0 {
		best := -1
		bestWaste := p.TargetMaxHeight + 1
		for i, h := range heights {
			top := h
			if top > 0 {
				top += p.Gap
			}
			waste := p.TargetMaxHeight - (top + itemHeight)
			if waste >= 0 && waste < bestWaste {
				best = i
				bestWaste = waste
			}
		}
		if best >= 0 {
			return best
		}
	}

	// No column has room under the target: fall back to the globally
	// shortest column. Ties resolve to the lowest index for determinism.
	shortest := 0
	for i := 1; i < len(heights); i++ {
		if heights[i] < heights[shortest] {
			shortest = i
		}
	}
	return shortest
}
