// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package layout

import (
	"fmt"
	"testing"

	"github.com/tomtom215/atelier/internal/models"
)

func makeItems(dims [][2]int) []models.PlacedArtwork {
	items := make([]models.PlacedArtwork, len(dims))
	for i, d := range dims {
		items[i] = models.PlacedArtwork{
			Artwork: models.Artwork{
				ID:     fmt.Sprintf("art-%d", i),
				Width:  d[0],
				Height: d[1],
			},
		}
	}
	return items
}

func TestPackDeterminism(t *testing.T) {
	p := NewPacker(3, 200, 10, 800)
	items := makeItems([][2]int{
		{400, 300}, {300, 400}, {500, 500}, {600, 200}, {200, 600},
		{350, 350}, {450, 300}, {300, 450},
	})

	posA, boundsA := p.Pack(items)
	posB, boundsB := p.Pack(items)

	if len(posA) != len(posB) {
		t.Fatalf("position counts differ: %d vs %d", len(posA), len(posB))
	}
	for i := range posA {
		if posA[i] != posB[i] {
			t.Errorf("position %d differs: %+v vs %+v", i, posA[i], posB[i])
		}
	}
	if boundsA != boundsB {
		t.Errorf("bounds differ: %+v vs %+v", boundsA, boundsB)
	}
}

func TestPackPlacesEveryItem(t *testing.T) {
	p := NewPacker(4, 150, 8, 600)
	items := makeItems([][2]int{
		{100, 100}, {200, 100}, {100, 200}, {300, 100}, {100, 300},
		{250, 250}, {400, 100}, {100, 400}, {150, 150}, {175, 225},
	})

	positions, bounds := p.Pack(items)
	if len(positions) != len(items) {
		t.Fatalf("placed %d of %d items", len(positions), len(items))
	}
	for i, pos := range positions {
		if pos.ArtworkID != items[i].ID {
			t.Errorf("position %d belongs to %s, want %s", i, pos.ArtworkID, items[i].ID)
		}
		if pos.Width != 150 {
			t.Errorf("item %d width = %v, want column width 150", i, pos.Width)
		}
		if pos.X < 0 || pos.Y < 0 {
			t.Errorf("item %d placed at negative position (%v, %v)", i, pos.X, pos.Y)
		}
		if pos.Y+pos.Height > bounds.Height {
			t.Errorf("item %d extends past content height", i)
		}
	}
}

func TestPackColumnsDoNotOverlap(t *testing.T) {
	p := NewPacker(2, 100, 10, 0)
	items := makeItems([][2]int{{100, 100}, {100, 100}, {100, 200}, {100, 50}})

	positions, _ := p.Pack(items)

	// Items within the same column must be separated by at least the gap.
	byCol := map[float64][]models.Position{}
	for _, pos := range positions {
		byCol[pos.X] = append(byCol[pos.X], pos)
	}
	for x, col := range byCol {
		for i := 0; i < len(col); i++ {
			for j := i + 1; j < len(col); j++ {
				a, b := col[i], col[j]
				if a.Y < b.Y+b.Height && b.Y < a.Y+a.Height {
					t.Errorf("items %s and %s overlap in column x=%v", a.ArtworkID, b.ArtworkID, x)
				}
			}
		}
	}
}

func TestPackPrefersColumnUnderTarget(t *testing.T) {
	// First tall item fills column 0 near the target; the next item must
	// land in an emptier column rather than overshoot the target.
	p := NewPacker(2, 100, 0, 300)
	items := makeItems([][2]int{{100, 250}, {100, 100}})

	positions, _ := p.Pack(items)
	if positions[0].X == positions[1].X {
		t.Errorf("second item stacked onto a near-full column")
	}
}

func TestPackEmptyInput(t *testing.T) {
	p := NewPacker(3, 200, 10, 800)
	positions, bounds := p.Pack(nil)
	if len(positions) != 0 {
		t.Errorf("expected no positions, got %d", len(positions))
	}
	if bounds.Width != 0 || bounds.Height != 0 {
		t.Errorf("expected zero bounds, got %+v", bounds)
	}
}

func TestPackDegenerateAspectRatio(t *testing.T) {
	p := NewPacker(2, 100, 5, 400)
	items := makeItems([][2]int{{0, 0}, {100, 100}})
	positions, _ := p.Pack(items)
	// Zero dimensions fall back to a square aspect ratio.
	if positions[0].Height != 100 {
		t.Errorf("degenerate item height = %v, want 100", positions[0].Height)
	}
}
