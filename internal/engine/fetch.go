// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/models"
	"github.com/tomtom215/atelier/internal/rings"
)

// fetchGrid loads the missing grid-mode chunks. A multi-chunk set goes to
// the source as a single batch query; a single chunk, or a batch that
// fails wholesale, goes through per-coordinate fetches so one bad chunk
// cannot take down its neighbours. Each result is posted back to the
// command queue individually so early chunks render without waiting.
func (e *Engine) fetchGrid(coords []geometry.ChunkCoord) {
	if len(coords) == 0 {
		return
	}
	for _, coord := range coords {
		e.markLoading(coord)
	}

	gen := e.focalGen
	count := e.canvasCfg.ItemsPerChunk
	seed := e.seed
	timeout := e.sourceCfg.FetchTimeout

	if len(coords) == 1 {
		coord := coords[0]
		go func() {
			items, err := e.fetchGridChunk(e.ctx, coord, count, seed, timeout)
			e.post(func() {
				e.applyGridResult(coord, items, err, gen)
			})
		}()
		return
	}

	go func() {
		start := time.Now()
		fctx, cancel := context.WithTimeout(e.ctx, timeout)
		results, err := e.source.FetchBatch(fctx, coords, count, nil, seed)
		cancel()
		metrics.ChunkFetchDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
		if err == nil {
			for _, coord := range coords {
				coord := coord
				items := results[coord.Key()]
				e.post(func() {
					e.applyGridResult(coord, items, nil, gen)
				})
			}
			return
		}
		metrics.ChunkFetchErrors.WithLabelValues("batch", "fetch").Inc()

		g, gctx := errgroup.WithContext(e.ctx)
		g.SetLimit(e.sourceCfg.Concurrency)
		for _, coord := range coords {
			coord := coord
			g.Go(func() error {
				items, err := e.fetchGridChunk(gctx, coord, count, seed, timeout)
				e.post(func() {
					e.applyGridResult(coord, items, err, gen)
				})
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// fetchGridChunk runs one grid fetch against the source with the standard
// timeout and metrics. Called off the command goroutine.
func (e *Engine) fetchGridChunk(ctx context.Context, coord geometry.ChunkCoord, count int, seed int64, timeout time.Duration) ([]models.Artwork, error) {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, timeout)
	items, err := e.source.FetchChunk(fctx, coord, count, nil, seed)
	cancel()
	metrics.ChunkFetchDuration.WithLabelValues("grid").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChunkFetchErrors.WithLabelValues("grid", "fetch").Inc()
	}
	return items, err
}

func (e *Engine) applyGridResult(coord geometry.ChunkCoord, items []models.Artwork, err error, gen uint64) {
	if gen != e.focalGen {
		metrics.StaleFocalDiscards.Inc()
		return
	}
	rec := e.cache.peek(coord.Key())
	if rec == nil || rec.State != models.ChunkStateLoading {
		return
	}
	if err != nil {
		e.markError(coord, err)
		return
	}

	// An empty result is a valid terminal state: the chunk is ready with
	// nothing to show, not stuck loading.
	placed := make([]models.PlacedArtwork, 0, len(items))
	for _, a := range items {
		placed = append(placed, models.PlacedArtwork{Artwork: a})
	}
	e.finalize(coord, placed)
}

// focus enters similarity mode around focalID. Runs on the command
// goroutine.
func (e *Engine) focus(focalID string) {
	if focalID == "" {
		return
	}

	e.focalGen++
	e.focalID = focalID
	e.focalArt = e.cache.findArtwork(focalID)
	cx, cy := geometry.ViewCenter(e.panner.Camera(), e.surface)
	e.focalCoord = e.grid.WorldToChunk(cx, cy)

	e.assignments = nil
	e.poolPending = true
	e.exclude = map[string]struct{}{focalID: {}}
	e.fillerQueue = nil
	e.fillerInflight = false
	e.pendingFiller = make(map[string]pendingChunk)
	e.cache.clear()

	if e.pub != nil {
		e.pub.FocalChanged(e.sessionID, focalID)
	}
	e.signal()

	gen := e.focalGen
	timeout := e.sourceCfg.FetchTimeout
	go func() {
		start := time.Now()
		fctx, cancel := context.WithTimeout(e.ctx, timeout)
		pool, err := e.source.FetchSimilar(fctx, focalID)
		cancel()
		metrics.ChunkFetchDuration.WithLabelValues("similarity").Observe(time.Since(start).Seconds())
		e.post(func() {
			e.applyPool(pool, err, gen)
		})
	}()
}

func (e *Engine) applyPool(pool *models.SimilarPool, err error, gen uint64) {
	if gen != e.focalGen {
		metrics.StaleFocalDiscards.Inc()
		return
	}
	if err != nil {
		// Without a pool there is nothing to arrange; fall back to grid
		// mode rather than leaving a blank canvas.
		metrics.ChunkFetchErrors.WithLabelValues("similarity", "pool").Inc()
		logging.Warn().
			Str("session_id", e.sessionID).
			Str("focal_id", e.focalID).
			Err(err).
			Msg("Similarity pool fetch failed, reverting to grid mode")
		e.focalGen++
		e.focalID = ""
		e.focalArt = nil
		e.poolPending = false
		e.ensure()
		return
	}

	e.assignments = make(map[string]rings.ChunkAssignment)
	for _, a := range rings.Assign(pool.Items, e.focalID, e.ringsCfg) {
		abs := e.focalCoord.Add(a.Offset)
		e.assignments[abs.Key()] = a
		metrics.RingAssignedItems.WithLabelValues("ranked").Add(float64(len(a.Ranked)))
		// Every ranked identity is reserved for its assigned chunk, so no
		// filler fetch anywhere may return it.
		for _, item := range a.Ranked {
			e.exclude[item.ID] = struct{}{}
		}
	}
	e.poolPending = false
	e.ensure()
}

// fetchSimilarity builds one chunk in similarity mode. Ranked items are
// already in hand from the pool; only filler needs the source, and filler
// fetches are strictly sequential so each sees the exclusion set grown by
// its predecessors.
func (e *Engine) fetchSimilarity(coord geometry.ChunkCoord) {
	ring := coord.Chebyshev(e.focalCoord)

	var placed []models.PlacedArtwork
	fillerSlots := e.ringsCfg.Capacity

	switch {
	case ring == 0:
		// The focal chunk leads with the focal artwork itself.
		if e.focalArt != nil {
			placed = append(placed, models.PlacedArtwork{Artwork: *e.focalArt})
			fillerSlots--
		}
	case ring <= e.ringsCfg.MaxRing:
		a, ok := e.assignments[coord.Key()]
		if ok {
			for _, item := range a.Ranked {
				score := item.Score
				placed = append(placed, models.PlacedArtwork{Artwork: item.Artwork, Score: &score})
			}
			fillerSlots = a.FillerSlots
		}
	}

	e.markLoading(coord)

	if fillerSlots <= 0 {
		e.finalize(coord, placed)
		return
	}

	e.pendingFiller[coord.Key()] = pendingChunk{items: placed, slots: fillerSlots}
	e.fillerQueue = append(e.fillerQueue, coord)
	e.pumpFiller()
}

// pumpFiller launches the next queued filler fetch if none is in flight.
func (e *Engine) pumpFiller() {
	if e.fillerInflight || len(e.fillerQueue) == 0 {
		return
	}
	coord := e.fillerQueue[0]
	e.fillerQueue = e.fillerQueue[1:]
	e.fillerInflight = true

	slots := e.pendingFiller[coord.Key()].slots

	exclude := make([]string, 0, len(e.exclude))
	for id := range e.exclude {
		exclude = append(exclude, id)
	}

	gen := e.focalGen
	seed := e.seed
	timeout := e.sourceCfg.FetchTimeout
	go func() {
		start := time.Now()
		fctx, cancel := context.WithTimeout(e.ctx, timeout)
		items, err := e.source.FetchChunk(fctx, coord, slots, exclude, seed)
		cancel()
		metrics.ChunkFetchDuration.WithLabelValues("similarity").Observe(time.Since(start).Seconds())
		e.post(func() {
			e.applyFillerResult(coord, items, err, gen)
		})
	}()
}

func (e *Engine) applyFillerResult(coord geometry.ChunkCoord, items []models.Artwork, err error, gen uint64) {
	if gen != e.focalGen {
		metrics.StaleFocalDiscards.Inc()
		return
	}
	e.fillerInflight = false

	placed := e.pendingFiller[coord.Key()].items
	delete(e.pendingFiller, coord.Key())

	if err != nil {
		metrics.ChunkFetchErrors.WithLabelValues("similarity", "filler").Inc()
		e.markError(coord, err)
		e.pumpFiller()
		return
	}

	// A short draw leaves slots empty rather than repeating identities:
	// the exclusion set is absolute.
	for _, a := range items {
		e.exclude[a.ID] = struct{}{}
		placed = append(placed, models.PlacedArtwork{Artwork: a, Filler: true})
	}
	metrics.RingAssignedItems.WithLabelValues("filler").Add(float64(len(items)))

	e.finalize(coord, placed)
	e.pumpFiller()
}
