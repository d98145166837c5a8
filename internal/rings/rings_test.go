// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package rings

import (
	"fmt"
	"testing"

	"github.com/tomtom215/atelier/internal/models"
)

func makePool(n int) []models.ScoredArtwork {
	pool := make([]models.ScoredArtwork, n)
	for i := 0; i < n; i++ {
		pool[i] = models.ScoredArtwork{
			Artwork: models.Artwork{ID: fmt.Sprintf("art-%03d", i), Width: 400, Height: 300},
			Score:   1 - float64(i)/float64(n),
		}
	}
	return pool
}

func TestAssignRingOneTakesHighestScored(t *testing.T) {
	// 50-item pool, ring-1 capacity 20 and threshold 0: the first ring-1
	// chunk receives exactly 20, highest-scored; following chunks consume
	// by rank until the pool runs out, then filler only.
	pool := makePool(50)
	assignments := Assign(pool, "", Config{Capacity: 20, Thresholds: []float64{0}, MaxRing: 2})

	first := assignments[0]
	if first.Ring != 1 {
		t.Fatalf("first assignment in ring %d, want 1", first.Ring)
	}
	if len(first.Ranked) != 20 {
		t.Fatalf("first chunk received %d items, want 20", len(first.Ranked))
	}
	for i, item := range first.Ranked {
		if item.ID != pool[i].ID {
			t.Errorf("slot %d holds %s, want %s (highest-scored first)", i, item.ID, pool[i].ID)
		}
	}

	// Pool of 50 fills chunk 0 (20), chunk 1 (20), chunk 2 (10); beyond
	// that every chunk is filler only.
	if got := len(assignments[1].Ranked); got != 20 {
		t.Errorf("second chunk received %d, want 20", got)
	}
	if got := len(assignments[2].Ranked); got != 10 {
		t.Errorf("third chunk received %d, want 10", got)
	}
	if assignments[2].FillerSlots != 10 {
		t.Errorf("third chunk filler slots = %d, want 10", assignments[2].FillerSlots)
	}
	for _, a := range assignments[3:] {
		if len(a.Ranked) != 0 {
			t.Errorf("chunk %v beyond pool exhaustion received ranked items", a.Offset)
		}
		if a.FillerSlots != 20 {
			t.Errorf("chunk %v filler slots = %d, want full capacity", a.Offset, a.FillerSlots)
		}
	}
}

func TestAssignNoDuplicateIdentities(t *testing.T) {
	pool := makePool(200)
	// Inject duplicates; only the first occurrence may be placed.
	pool = append(pool, pool[0], pool[5], pool[10])

	assignments := Assign(pool, "", Config{Capacity: 12, Thresholds: []float64{0.5, 0.2}, MaxRing: 4})

	placed := make(map[string]bool)
	for _, a := range assignments {
		for _, item := range a.Ranked {
			if placed[item.ID] {
				t.Errorf("identity %s placed twice", item.ID)
			}
			placed[item.ID] = true
		}
	}
}

func TestAssignExcludesFocal(t *testing.T) {
	pool := makePool(30)
	focal := pool[3].ID
	assignments := Assign(pool, focal, Config{Capacity: 10, MaxRing: 2})
	for _, a := range assignments {
		for _, item := range a.Ranked {
			if item.ID == focal {
				t.Fatalf("focal item %s assigned to chunk %v", focal, a.Offset)
			}
		}
	}
}

func TestAssignMonotonicDecay(t *testing.T) {
	pool := makePool(500)
	cfg := Config{Capacity: 8, Thresholds: []float64{0.8, 0.5, 0.2}, MaxRing: 4}
	assignments := Assign(pool, "", cfg)

	// The minimum score present in ring n must be >= the threshold of ring
	// n+1, and items in a chunk must meet that chunk's own threshold.
	minPerRing := map[int]float64{}
	for _, a := range assignments {
		threshold := cfg.Normalize().Threshold(a.Ring)
		for _, item := range a.Ranked {
			if item.Score < threshold {
				t.Errorf("ring %d holds item %s below threshold %v", a.Ring, item.ID, threshold)
			}
			if cur, ok := minPerRing[a.Ring]; !ok || item.Score < cur {
				minPerRing[a.Ring] = item.Score
			}
		}
	}
	for ring := 1; ring < 4; ring++ {
		minScore, ok := minPerRing[ring]
		if !ok {
			continue
		}
		if nextThreshold := cfg.Normalize().Threshold(ring + 1); minScore < nextThreshold {
			t.Errorf("ring %d min score %v below ring %d threshold %v", ring, minScore, ring+1, nextThreshold)
		}
	}
}

func TestAssignThresholdStopsConsumption(t *testing.T) {
	// All scores below the ring-1 threshold: ring 1 chunks stay empty and
	// outer relaxed rings receive the items instead.
	pool := makePool(10) // scores (0.9 .. 0.0]
	cfg := Config{Capacity: 5, Thresholds: []float64{0.95, 0}, MaxRing: 2}
	assignments := Assign(pool, "", cfg)

	for _, a := range assignments {
		if a.Ring == 1 && len(a.Ranked) != 0 {
			t.Errorf("ring-1 chunk %v received items below its threshold", a.Offset)
		}
	}
	total := 0
	for _, a := range assignments {
		if a.Ring == 2 {
			total += len(a.Ranked)
		}
	}
	if total != 10 {
		t.Errorf("ring 2 received %d items, want all 10", total)
	}
}

func TestNormalizeForcesNonIncreasingThresholds(t *testing.T) {
	cfg := Config{Thresholds: []float64{0.5, 0.8, 0.3, 0.4}}.Normalize()
	want := []float64{0.5, 0.5, 0.3, 0.3}
	for i, v := range cfg.Thresholds {
		if v != want[i] {
			t.Errorf("threshold %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestAssignStableTies(t *testing.T) {
	pool := []models.ScoredArtwork{
		{Artwork: models.Artwork{ID: "a"}, Score: 0.7},
		{Artwork: models.Artwork{ID: "b"}, Score: 0.7},
		{Artwork: models.Artwork{ID: "c"}, Score: 0.7},
	}
	a1 := Assign(pool, "", Config{Capacity: 3, MaxRing: 1})
	a2 := Assign(pool, "", Config{Capacity: 3, MaxRing: 1})
	for i := range a1[0].Ranked {
		if a1[0].Ranked[i].ID != a2[0].Ranked[i].ID {
			t.Fatalf("tied items reordered between runs")
		}
	}
	if a1[0].Ranked[0].ID != "a" || a1[0].Ranked[1].ID != "b" {
		t.Errorf("ties do not keep pool order: %v", a1[0].Ranked)
	}
}
