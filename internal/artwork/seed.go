// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package artwork

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/models"
)

// Seeding vocabulary for the demo collection. Titles combine a form and a
// subject; dimensions follow common print formats.
var (
	seedArtists = []string{
		"Mira Kovanen", "J. Albright", "Tomas Ferreira", "Yuki Hanada",
		"Clara Voss", "Odell Moreau", "Ingrid Bakke", "Sefa Demir",
		"R. Castellanos", "Anouk Visser", "Leon Marchetti", "Priya Nandakumar",
	}
	seedForms = []string{
		"Study", "Composition", "Nocturne", "Etude", "Variation",
		"Fragment", "Field", "Interior", "Portrait", "Landscape",
	}
	seedSubjects = []string{
		"in Ochre", "with Birds", "No. 7", "of the Harbor", "at Dusk",
		"in Two Parts", "After Rain", "with Open Window", "in Winter Light",
		"of the North Coast", "Against Grey", "with Folded Cloth",
	}
)

// Seed populates the store with a deterministic synthetic collection of n
// artworks when the artworks table is empty. The rand seed fixes titles,
// dimensions, and embeddings, so similarity rankings are reproducible
// across restarts.
func Seed(ctx context.Context, store *Store, n int, seed int64) error {
	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing collection: %w", err)
	}
	if count > 0 {
		logging.Debug().Int64("artworks", count).Msg("Collection already seeded, skipping")
		return nil
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic demo data, not crypto

	items := make([]models.Artwork, 0, n)
	embeddings := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		year := 1880 + rng.Intn(145)
		// Aspect ratios cluster around portrait and landscape print formats.
		width := 600 + rng.Intn(1000)
		height := int(float64(width) * (0.6 + rng.Float64()*1.2))

		items = append(items, models.Artwork{
			ID:       fmt.Sprintf("art-%06d", i+1),
			Title:    seedForms[rng.Intn(len(seedForms))] + " " + seedSubjects[rng.Intn(len(seedSubjects))],
			Artist:   seedArtists[rng.Intn(len(seedArtists))],
			Year:     year,
			Width:    width,
			Height:   height,
			ImageURL: fmt.Sprintf("/images/art-%06d.jpg", i+1),
		})
		embeddings = append(embeddings, randomUnitVector(rng))
	}

	if err := store.InsertArtworks(ctx, items, embeddings); err != nil {
		return fmt.Errorf("failed to seed collection: %w", err)
	}

	logging.Info().Int("artworks", n).Int64("seed", seed).Msg("Seeded synthetic artwork collection")
	return nil
}

// randomUnitVector draws a unit-norm embedding so cosine similarity is a
// plain dot product over well-conditioned vectors.
func randomUnitVector(rng *rand.Rand) []float32 {
	v := make([]float32, embeddingDim)
	var norm float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
