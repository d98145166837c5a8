// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package engine owns the chunk state for one canvas session.
//
// All mutable state (camera, chunk cache, similarity assignments) is
// confined to a single goroutine draining a command queue. Public methods
// enqueue commands; fetch goroutines post their results back as commands.
// This removes data races by construction and makes every state transition
// a serialized, observable step.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/atelier/internal/artwork"
	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/layout"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/models"
	"github.com/tomtom215/atelier/internal/pan"
	"github.com/tomtom215/atelier/internal/rings"
	"github.com/tomtom215/atelier/internal/virtualizer"
)

// Publisher receives engine lifecycle events for analytics. A nil
// Publisher is valid and drops everything.
type Publisher interface {
	ChunkReady(sessionID, chunkKey string, itemCount int)
	FocalChanged(sessionID, focalID string)
	SessionClosed(sessionID string)
}

// Engine drives the infinite canvas for one session: panning, chunk
// virtualization, fetching, masonry layout, and similarity-mode ring
// assignment.
type Engine struct {
	sessionID string

	canvasCfg config.CanvasConfig
	ringsCfg  rings.Config
	sourceCfg config.SourceConfig

	grid   geometry.Grid
	virt   *virtualizer.Virtualizer
	packer layout.Packer
	panner *pan.Controller

	source artwork.Source
	pub    Publisher

	cache   *chunkCache
	surface geometry.Size
	seed    int64

	// Similarity mode state. focalGen increments on every mode change so
	// in-flight results can be recognized as stale and discarded.
	focalID     string
	focalArt    *models.Artwork
	focalCoord  geometry.ChunkCoord
	focalGen    uint64
	assignments map[string]rings.ChunkAssignment
	poolPending bool

	// Exclusion set for similarity mode: the focal, every ranked item, and
	// every filler item fetched so far. Grows monotonically per focal
	// session so no identity repeats across chunks.
	exclude map[string]struct{}

	// Filler fetches run strictly one at a time; each consumes the
	// exclusion set as left by its predecessor.
	fillerQueue    []geometry.ChunkCoord
	fillerInflight bool
	pendingFiller  map[string]pendingChunk

	lastVisible []geometry.ChunkCoord
	suppressed  bool

	ctx      context.Context
	commands chan func()
	done     chan struct{}
	notify   chan struct{}
}

// pendingChunk holds a similarity chunk's ranked items while its filler
// fetch is queued.
type pendingChunk struct {
	items []models.PlacedArtwork
	slots int
}

// New builds an engine for one session. pub may be nil.
func New(sessionID string, cfg *config.Config, source artwork.Source, pub Publisher) *Engine {
	grid := geometry.NewGrid(cfg.Canvas.ChunkWidth, cfg.Canvas.ChunkHeight)

	return &Engine{
		sessionID: sessionID,
		canvasCfg: cfg.Canvas,
		ringsCfg: rings.Config{
			Capacity:   cfg.Rings.Capacity,
			Thresholds: cfg.Rings.Thresholds,
			MaxRing:    cfg.Rings.MaxRing,
		}.Normalize(),
		sourceCfg: cfg.Source,
		grid:      grid,
		virt: virtualizer.New(grid, virtualizer.Config{
			Buffer:     cfg.Canvas.Buffer,
			CullRadius: cfg.Canvas.CullRadius,
			SoftLimit:  cfg.Canvas.SoftLimit,
			HardLimit:  cfg.Canvas.HardLimit,
		}),
		packer:        layout.NewPacker(cfg.Canvas.Columns, cfg.Canvas.ColumnWidth, cfg.Canvas.Gap, cfg.Canvas.TargetMaxHeight),
		panner:        pan.NewController(cfg.Canvas.ClickThreshold),
		source:        source,
		pub:           pub,
		cache:         newChunkCache(cfg.Canvas.MaxCachedChunks),
		seed:          cfg.Canvas.DefaultSeed,
		exclude:       make(map[string]struct{}),
		pendingFiller: make(map[string]pendingChunk),
		commands:      make(chan func(), 256),
		done:          make(chan struct{}),
		notify:        make(chan struct{}, 1),
	}
}

// Run drains the command queue until ctx is cancelled. It must be running
// before any other method is called. On return the engine is closed:
// methods queued or blocked around cancellation return zero values
// instead of waiting on a queue nobody drains.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			if e.pub != nil {
				e.pub.SessionClosed(e.sessionID)
			}
			return ctx.Err()
		case fn := <-e.commands:
			fn()
		}
	}
}

// post enqueues a command, or reports false once Run has returned. Every
// public method and every fetch goroutine goes through here so nothing
// blocks on a stopped engine.
func (e *Engine) post(fn func()) bool {
	select {
	case e.commands <- fn:
		return true
	case <-e.done:
		return false
	}
}

// Notify signals after every state change; consumers then call Snapshot.
// The channel is buffered and coalescing: a slow consumer sees at least
// one signal, not one per change.
func (e *Engine) Notify() <-chan struct{} {
	return e.notify
}

func (e *Engine) signal() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// SetViewport sets the render surface size in pixels.
func (e *Engine) SetViewport(width, height float64) {
	e.post(func() {
		e.surface = geometry.Size{Width: width, Height: height}
		e.ensure()
	})
}

// SetCamera jumps the camera, for programmatic navigation. Ignored while a
// drag is active.
func (e *Engine) SetCamera(cam geometry.Camera) {
	e.post(func() {
		e.panner.SetCamera(cam)
		e.ensure()
	})
}

// PointerDown begins a potential drag at surface position (x, y).
func (e *Engine) PointerDown(x, y float64) {
	e.post(func() {
		e.panner.PointerDown(x, y)
	})
}

// PointerMove pans the camera while dragging.
func (e *Engine) PointerMove(x, y float64) {
	e.post(func() {
		e.panner.PointerMove(x, y)
		e.ensure()
	})
}

// PointerUp ends the drag and reports whether the subsequent click should
// be suppressed because the pointer travelled beyond the click threshold.
// Returns false if the engine has stopped.
func (e *Engine) PointerUp() bool {
	reply := make(chan bool, 1)
	if !e.post(func() {
		e.suppressed = e.panner.PointerUp()
		reply <- e.suppressed
	}) {
		return false
	}
	select {
	case v := <-reply:
		return v
	case <-e.done:
		return false
	}
}

// Click focuses the given artwork unless the preceding drag suppressed the
// click. Returns true when the click was acted on.
func (e *Engine) Click(artworkID string) bool {
	reply := make(chan bool, 1)
	if !e.post(func() {
		if e.suppressed {
			e.suppressed = false
			reply <- false
			return
		}
		e.focus(artworkID)
		reply <- true
	}) {
		return false
	}
	select {
	case v := <-reply:
		return v
	case <-e.done:
		return false
	}
}

// Focus enters similarity mode around the given artwork unconditionally.
func (e *Engine) Focus(focalID string) {
	e.post(func() {
		e.focus(focalID)
	})
}

// ClearFocus returns to grid mode.
func (e *Engine) ClearFocus() {
	e.post(func() {
		e.focalGen++
		e.focalID = ""
		e.focalArt = nil
		e.assignments = nil
		e.poolPending = false
		e.exclude = make(map[string]struct{})
		e.fillerQueue = nil
		e.fillerInflight = false
		e.pendingFiller = make(map[string]pendingChunk)
		e.cache.clear()
		e.ensure()
	})
}

// Ensure re-evaluates the visible set and issues any missing fetches. The
// prefetch timer calls this on a fixed interval, independent of pointer
// activity.
func (e *Engine) Ensure() {
	e.post(func() {
		e.ensure()
	})
}

// Snapshot returns the current canvas state for rendering, or a zero
// snapshot if the engine has stopped.
func (e *Engine) Snapshot() models.CanvasSnapshot {
	reply := make(chan models.CanvasSnapshot, 1)
	if !e.post(func() {
		reply <- e.snapshot()
	}) {
		return models.CanvasSnapshot{}
	}
	select {
	case snap := <-reply:
		return snap
	case <-e.done:
		return models.CanvasSnapshot{}
	}
}

func (e *Engine) snapshot() models.CanvasSnapshot {
	snap := models.CanvasSnapshot{
		Camera:  e.panner.Camera(),
		FocalID: e.focalID,
	}
	for _, coord := range e.lastVisible {
		rec := e.cache.get(coord.Key())
		if rec == nil {
			continue
		}
		switch rec.State {
		case models.ChunkStateReady:
			snap.VisibleChunks = append(snap.VisibleChunks, rec)
		case models.ChunkStateLoading:
			snap.LoadingKeys = append(snap.LoadingKeys, rec.Coord.Key())
		case models.ChunkStateError:
			if snap.ErrorKeys == nil {
				snap.ErrorKeys = make(map[string]string)
			}
			snap.ErrorKeys[rec.Coord.Key()] = rec.Err
		}
	}
	return snap
}

// ensure is the core pass: virtualize, fetch what is missing, evict what
// fell out. Runs on the command goroutine.
func (e *Engine) ensure() {
	if e.surface.Width <= 0 || e.surface.Height <= 0 {
		return
	}

	result := e.virt.Compute(e.panner.Camera(), e.surface, func(c geometry.ChunkCoord) bool {
		return e.cache.peek(c.Key()) != nil
	})
	e.lastVisible = result.Visible

	protected := make(map[string]struct{}, len(result.Visible))
	for _, coord := range result.Visible {
		key := coord.Key()
		protected[key] = struct{}{}
		if rec := e.cache.peek(key); rec != nil {
			rec.LastAccessed = time.Now()
		}
	}

	// An error record pins its chunk while it stays visible, so a failing
	// chunk is not refetched on every ensure pass. Dropping the record once
	// the chunk leaves the viewport makes re-entry fetch it afresh.
	for _, key := range e.cache.keys() {
		rec := e.cache.peek(key)
		if rec != nil && rec.State == models.ChunkStateError {
			if _, visible := protected[key]; !visible {
				e.cache.remove(key)
			}
		}
	}

	if e.focalID == "" {
		e.fetchGrid(result.ToLoad)
	} else if !e.poolPending {
		for _, coord := range result.ToLoad {
			e.fetchSimilarity(coord)
		}
	}

	// In-flight loads stay protected so an applying result always finds
	// its record.
	for _, key := range e.cache.keys() {
		if rec := e.cache.peek(key); rec != nil && rec.State == models.ChunkStateLoading {
			protected[key] = struct{}{}
		}
	}
	e.cache.evictOver(protected)
	e.signal()
}

// finalize packs fetched items into positions and publishes the ready
// record.
func (e *Engine) finalize(coord geometry.ChunkCoord, items []models.PlacedArtwork) {
	positions, bounds := e.packer.Pack(items)
	rec := &models.ChunkRecord{
		ID:        uuid.NewString(),
		Coord:     coord,
		Items:     items,
		Positions: positions,
		Bounds:    bounds,
		State:     models.ChunkStateReady,
	}
	e.cache.put(coord.Key(), rec)
	if e.pub != nil {
		e.pub.ChunkReady(e.sessionID, coord.Key(), len(items))
	}
	e.signal()
}

func (e *Engine) markLoading(coord geometry.ChunkCoord) {
	e.cache.put(coord.Key(), &models.ChunkRecord{
		ID:    uuid.NewString(),
		Coord: coord,
		State: models.ChunkStateLoading,
	})
}

func (e *Engine) markError(coord geometry.ChunkCoord, err error) {
	e.cache.put(coord.Key(), &models.ChunkRecord{
		ID:    uuid.NewString(),
		Coord: coord,
		State: models.ChunkStateError,
		Err:   err.Error(),
	})
	logging.Warn().
		Str("session_id", e.sessionID).
		Str("chunk", coord.Key()).
		Err(err).
		Msg("Chunk fetch failed")
	e.signal()
}
