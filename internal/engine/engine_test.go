// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/models"
)

// fakeSource generates deterministic per-chunk artworks and supports
// per-key failures and empty results.
type fakeSource struct {
	mu         sync.Mutex
	chunkCalls map[string]int
	batchCalls int
	failKeys   map[string]bool
	emptyKeys  map[string]bool
	failBatch  bool
	pool       *models.SimilarPool
	poolErr    error
	poolDelay  time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		chunkCalls: make(map[string]int),
		failKeys:   make(map[string]bool),
		emptyKeys:  make(map[string]bool),
	}
}

func (s *fakeSource) FetchChunk(ctx context.Context, coord geometry.ChunkCoord, count int, exclude []string, seed int64) ([]models.Artwork, error) {
	s.mu.Lock()
	s.chunkCalls[coord.Key()]++
	fail := s.failKeys[coord.Key()]
	empty := s.emptyKeys[coord.Key()]
	s.mu.Unlock()

	if fail {
		return nil, errors.New("backend unavailable")
	}
	if empty {
		return nil, nil
	}

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var items []models.Artwork
	for i := 0; len(items) < count && i < count*4; i++ {
		id := fmt.Sprintf("art-%s-%d", coord.Key(), i)
		if excluded[id] {
			continue
		}
		items = append(items, models.Artwork{ID: id, Title: id, Width: 400, Height: 300})
	}
	return items, nil
}

func (s *fakeSource) FetchSimilar(ctx context.Context, focalID string) (*models.SimilarPool, error) {
	if s.poolDelay > 0 {
		select {
		case <-time.After(s.poolDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.poolErr != nil {
		return nil, s.poolErr
	}
	return s.pool, nil
}

func (s *fakeSource) FetchBatch(ctx context.Context, coords []geometry.ChunkCoord, count int, exclude []string, seed int64) (map[string][]models.Artwork, error) {
	s.mu.Lock()
	s.batchCalls++
	fail := s.failBatch
	s.mu.Unlock()

	if fail {
		return nil, errors.New("batch query failed")
	}

	result := make(map[string][]models.Artwork, len(coords))
	for _, c := range coords {
		items, err := s.FetchChunk(ctx, c, count, exclude, seed)
		if err != nil {
			return nil, err
		}
		result[c.Key()] = items
	}
	return result, nil
}

func (s *fakeSource) calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCalls[key]
}

func (s *fakeSource) batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchCalls
}

func testEngineConfig() *config.Config {
	return &config.Config{
		Canvas: config.CanvasConfig{
			ChunkWidth:      100,
			ChunkHeight:     100,
			Buffer:          0,
			CullRadius:      0,
			SoftLimit:       50,
			HardLimit:       100,
			MaxCachedChunks: 8,
			ItemsPerChunk:   4,
			Columns:         2,
			ColumnWidth:     40,
			Gap:             4,
			TargetMaxHeight: 400,
			ClickThreshold:  5,
			DefaultSeed:     7,
		},
		Rings: config.RingsConfig{
			Capacity:   3,
			Thresholds: []float64{0.4, 0.2},
			MaxRing:    2,
		},
		Source: config.SourceConfig{
			FetchTimeout: time.Second,
			Concurrency:  4,
		},
	}
}

func startEngine(t *testing.T, src *fakeSource, cfg *config.Config) *Engine {
	t.Helper()

	e := New("test-session", cfg, src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

// waitFor polls the engine snapshot until cond is satisfied or the
// deadline passes.
func waitFor(t *testing.T, e *Engine, cond func(models.CanvasSnapshot) bool, msg string) models.CanvasSnapshot {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := e.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := e.Snapshot()
	t.Fatalf("timeout waiting for %s; last snapshot: %d ready, loading %v, errors %v",
		msg, len(snap.VisibleChunks), snap.LoadingKeys, snap.ErrorKeys)
	return snap
}

func allReady(n int) func(models.CanvasSnapshot) bool {
	return func(s models.CanvasSnapshot) bool {
		return len(s.VisibleChunks) == n && len(s.LoadingKeys) == 0
	}
}

func TestEngineLoadsVisibleChunks(t *testing.T) {
	src := newFakeSource()
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(250, 250) // chunks (0..2, 0..2)

	snap := waitFor(t, e, allReady(9), "9 ready chunks")
	for _, rec := range snap.VisibleChunks {
		if len(rec.Items) != 4 {
			t.Errorf("chunk %s has %d items, want 4", rec.Coord.Key(), len(rec.Items))
		}
		if len(rec.Positions) != len(rec.Items) {
			t.Errorf("chunk %s positions not aligned with items", rec.Coord.Key())
		}
		if rec.State != models.ChunkStateReady {
			t.Errorf("chunk %s state = %s, want ready", rec.Coord.Key(), rec.State)
		}
	}
}

func TestEngineDeduplicatesInflightFetches(t *testing.T) {
	src := newFakeSource()
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100) // single chunk (0,0)
	// Repeated ensures while the first fetch may still be in flight must
	// not issue duplicate fetches.
	for i := 0; i < 10; i++ {
		e.Ensure()
	}

	waitFor(t, e, allReady(1), "chunk ready")
	e.Ensure()
	waitFor(t, e, allReady(1), "chunk still ready")

	if got := src.calls("0,0"); got != 1 {
		t.Errorf("chunk 0,0 fetched %d times, want 1", got)
	}
}

func TestEngineGridLoadsMultiChunkSetsInOneBatch(t *testing.T) {
	src := newFakeSource()
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(250, 250) // chunks (0..2, 0..2)
	waitFor(t, e, allReady(9), "9 ready chunks")

	if src.batches() == 0 {
		t.Error("multi-chunk load never issued a batch fetch")
	}
	// The batch served every chunk; no per-coordinate fetches on top.
	if got := src.calls("1,1"); got != 1 {
		t.Errorf("chunk 1,1 fetched %d times, want 1", got)
	}
}

func TestEngineBatchFailureFallsBackToSingleFetches(t *testing.T) {
	src := newFakeSource()
	src.failBatch = true
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(250, 100) // chunks (0,0) (1,0) (2,0)

	snap := waitFor(t, e, allReady(3), "3 ready chunks via fallback")
	if src.batches() == 0 {
		t.Error("batch fetch never attempted")
	}
	for _, rec := range snap.VisibleChunks {
		if len(rec.Items) != 4 {
			t.Errorf("chunk %s has %d items, want 4", rec.Coord.Key(), len(rec.Items))
		}
	}
}

func TestEngineErrorIsolation(t *testing.T) {
	src := newFakeSource()
	src.failKeys["1,0"] = true
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(250, 100) // chunks (0,0) (1,0) (2,0)

	snap := waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return len(s.VisibleChunks) == 2 && len(s.ErrorKeys) == 1
	}, "2 ready + 1 error")

	if _, ok := snap.ErrorKeys["1,0"]; !ok {
		t.Errorf("ErrorKeys = %v, want entry for 1,0", snap.ErrorKeys)
	}
	for _, rec := range snap.VisibleChunks {
		if rec.Coord.Key() == "1,0" {
			t.Error("failed chunk listed as visible")
		}
	}
}

func TestEngineErrorChunkNotRefetchedWhileVisible(t *testing.T) {
	src := newFakeSource()
	src.failKeys["0,0"] = true
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)
	waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return len(s.ErrorKeys) == 1
	}, "error state")

	// A failing chunk that stays in view is not refetched by later ensure
	// passes, no matter how many the prefetch timer issues.
	calls := src.calls("0,0")
	for i := 0; i < 5; i++ {
		e.Ensure()
	}
	waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return len(s.ErrorKeys) == 1 && len(s.LoadingKeys) == 0
	}, "error state held")

	if got := src.calls("0,0"); got != calls {
		t.Errorf("failing visible chunk fetched %d times, want %d", got, calls)
	}
}

func TestEngineErrorChunkRetriesAfterLeavingView(t *testing.T) {
	src := newFakeSource()
	src.failKeys["0,0"] = true
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)
	waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return len(s.ErrorKeys) == 1
	}, "error state")
	calls := src.calls("0,0")

	src.mu.Lock()
	src.failKeys["0,0"] = false
	src.mu.Unlock()

	// Panning the chunk out of view and back is what makes it
	// retry-eligible again.
	e.SetCamera(geometry.Camera{TranslateX: -300})
	waitFor(t, e, allReady(1), "panned away")
	e.SetCamera(geometry.Camera{})
	snap := waitFor(t, e, allReady(1), "chunk recovered")

	if got := snap.VisibleChunks[0].Coord.Key(); got != "0,0" {
		t.Errorf("recovered chunk = %s, want 0,0", got)
	}
	if got := src.calls("0,0"); got <= calls {
		t.Errorf("chunk 0,0 fetched %d times, want a retry after re-entering view", got)
	}
}

func TestEngineEmptyResultIsReady(t *testing.T) {
	src := newFakeSource()
	src.emptyKeys["0,0"] = true
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)

	snap := waitFor(t, e, allReady(1), "empty chunk ready")
	if len(snap.VisibleChunks[0].Items) != 0 {
		t.Errorf("empty result produced %d items", len(snap.VisibleChunks[0].Items))
	}
}

func TestEngineCacheBound(t *testing.T) {
	src := newFakeSource()
	cfg := testEngineConfig()
	cfg.Canvas.MaxCachedChunks = 4
	e := startEngine(t, src, cfg)

	e.SetViewport(100, 100)
	waitFor(t, e, allReady(1), "initial chunk")

	// Pan far enough that previous chunks leave the visible set, several
	// times over, then verify the cache stayed bounded.
	for i := 1; i <= 10; i++ {
		e.SetCamera(geometry.Camera{TranslateX: float64(-100 * i)})
		waitFor(t, e, allReady(1), "panned chunk")
	}

	done := make(chan int, 1)
	e.commands <- func() {
		done <- e.cache.len()
	}
	if got := <-done; got > 4 {
		t.Errorf("cache holds %d records, want <= 4", got)
	}
}

func TestEngineStoppedEngineUnblocksCallers(t *testing.T) {
	src := newFakeSource()
	e := New("test-session", testEngineConfig(), src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(stopped)
	}()

	e.SetViewport(100, 100)
	waitFor(t, e, allReady(1), "chunk ready")

	cancel()
	<-stopped

	// Methods called after Run returned must come back promptly with zero
	// values instead of waiting on a queue nobody drains.
	snaps := make(chan models.CanvasSnapshot, 1)
	go func() { snaps <- e.Snapshot() }()
	select {
	case snap := <-snaps:
		if len(snap.VisibleChunks) != 0 || snap.FocalID != "" {
			t.Errorf("stopped engine returned non-zero snapshot: %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("Snapshot blocked after engine stopped")
	}

	ups := make(chan bool, 1)
	go func() { ups <- e.PointerUp() }()
	select {
	case v := <-ups:
		if v {
			t.Error("PointerUp on stopped engine = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("PointerUp blocked after engine stopped")
	}

	clicks := make(chan bool, 1)
	go func() { clicks <- e.Click("art-0,0-0") }()
	select {
	case v := <-clicks:
		if v {
			t.Error("Click on stopped engine = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("Click blocked after engine stopped")
	}
}

func similarityPool(n int) *models.SimilarPool {
	pool := &models.SimilarPool{FocalID: "focal-1", Total: n}
	for i := 0; i < n; i++ {
		pool.Items = append(pool.Items, models.ScoredArtwork{
			Artwork: models.Artwork{ID: fmt.Sprintf("sim-%03d", i), Width: 400, Height: 300},
			Score:   1 - float64(i)*0.01,
		})
	}
	return pool
}

func TestEngineSimilarityModeNoCrossChunkDuplicates(t *testing.T) {
	src := newFakeSource()
	src.pool = similarityPool(10)
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(250, 250)
	waitFor(t, e, allReady(9), "grid loaded")

	e.Focus("focal-1")
	snap := waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return s.FocalID == "focal-1" && len(s.VisibleChunks) == 9 && len(s.LoadingKeys) == 0
	}, "similarity layout")

	seen := make(map[string]string)
	for _, rec := range snap.VisibleChunks {
		for _, item := range rec.Items {
			if prev, ok := seen[item.ID]; ok {
				t.Errorf("artwork %s appears in both %s and %s", item.ID, prev, rec.Coord.Key())
			}
			seen[item.ID] = rec.Coord.Key()
		}
	}
	if _, ok := seen["focal-1"]; ok {
		// The focal was never rendered in grid mode under this fake
		// source, so it cannot be resolved into the focal chunk.
		t.Log("focal artwork present in layout")
	}
}

func TestEngineSimilarityRankedBeforeFiller(t *testing.T) {
	src := newFakeSource()
	src.pool = similarityPool(30)
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(250, 250)
	waitFor(t, e, allReady(9), "grid loaded")

	e.Focus("focal-1")
	snap := waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return s.FocalID == "focal-1" && len(s.VisibleChunks) == 9 && len(s.LoadingKeys) == 0
	}, "similarity layout")

	for _, rec := range snap.VisibleChunks {
		fillerSeen := false
		for _, item := range rec.Items {
			if item.Filler {
				fillerSeen = true
				continue
			}
			if fillerSeen {
				t.Errorf("chunk %s has ranked item after filler", rec.Coord.Key())
			}
			// The focal chunk (view center of a 250px surface over
			// 100px chunks) carries no scores; ranked items elsewhere do.
			if item.Score == nil && rec.Coord.Key() != "1,1" {
				t.Errorf("ranked item %s in chunk %s missing score", item.ID, rec.Coord.Key())
			}
		}
	}
}

func TestEngineStaleFocalResultsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.pool = similarityPool(10)
	src.poolDelay = 50 * time.Millisecond
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)
	waitFor(t, e, allReady(1), "grid loaded")

	// Focus, then immediately clear before the pool fetch lands. The late
	// pool result must not flip the session back into similarity mode.
	e.Focus("focal-1")
	e.ClearFocus()

	time.Sleep(150 * time.Millisecond)
	snap := waitFor(t, e, allReady(1), "grid restored")
	if snap.FocalID != "" {
		t.Errorf("FocalID = %q after clear, want empty", snap.FocalID)
	}
}

func TestEnginePoolErrorFallsBackToGrid(t *testing.T) {
	src := newFakeSource()
	src.poolErr = errors.New("pool backend down")
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)
	waitFor(t, e, allReady(1), "grid loaded")

	e.Focus("focal-1")
	snap := waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return s.FocalID == "" && len(s.VisibleChunks) == 1 && len(s.LoadingKeys) == 0
	}, "grid fallback")
	if snap.FocalID != "" {
		t.Errorf("FocalID = %q, want empty after pool failure", snap.FocalID)
	}
}

func TestEngineClickSuppression(t *testing.T) {
	src := newFakeSource()
	src.pool = similarityPool(5)
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)
	waitFor(t, e, allReady(1), "grid loaded")

	// A drag beyond the threshold suppresses the click.
	e.PointerDown(10, 10)
	e.PointerMove(40, 10)
	if suppressed := e.PointerUp(); !suppressed {
		t.Error("PointerUp() after 30px drag = false, want suppression")
	}
	if acted := e.Click("art-0,0-0"); acted {
		t.Error("Click() acted despite suppression")
	}

	snap := e.Snapshot()
	if snap.FocalID != "" {
		t.Errorf("suppressed click changed focal to %q", snap.FocalID)
	}

	// A steady click focuses.
	e.PointerDown(10, 10)
	e.PointerMove(12, 10)
	if suppressed := e.PointerUp(); suppressed {
		t.Error("PointerUp() after 2px drag = true, want no suppression")
	}
	if acted := e.Click("focal-1"); !acted {
		t.Error("Click() did not act on steady click")
	}

	waitFor(t, e, func(s models.CanvasSnapshot) bool {
		return s.FocalID == "focal-1"
	}, "focal set")
}

func TestEnginePanTranslatesAndLoads(t *testing.T) {
	src := newFakeSource()
	e := startEngine(t, src, testEngineConfig())

	e.SetViewport(100, 100)
	waitFor(t, e, allReady(1), "origin chunk")

	e.PointerDown(50, 50)
	e.PointerMove(-150, 50) // drag left 200px: world moves to chunk (2,0)
	e.PointerUp()

	snap := waitFor(t, e, func(s models.CanvasSnapshot) bool {
		for _, rec := range s.VisibleChunks {
			if rec.Coord.Key() == "2,0" {
				return true
			}
		}
		return false
	}, "chunk 2,0 loaded")

	if snap.Camera.TranslateX != -200 {
		t.Errorf("Camera.TranslateX = %f, want -200", snap.Camera.TranslateX)
	}
}
