// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package api provides the HTTP surface: chunk and similarity queries for
// stateless callers, read-only session snapshots, and the WebSocket
// upgrade into a live canvas session.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/atelier/internal/artwork"
	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/engine"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/layout"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/models"
	ws "github.com/tomtom215/atelier/internal/websocket"
)

// HealthChecker reports backend connectivity for readiness probes.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	cfg     *config.Config
	source  artwork.Source
	health  HealthChecker
	hub     *ws.Hub
	pub     engine.Publisher
	packer  layout.Packer
	grid    geometry.Grid
	rootCtx context.Context

	breakerState func() string
}

// NewHandler wires the handler. pub may be nil; breakerState may be nil
// when no circuit breaker wraps the source.
func NewHandler(cfg *config.Config, source artwork.Source, health HealthChecker, hub *ws.Hub, pub engine.Publisher) *Handler {
	return &Handler{
		cfg:     cfg,
		source:  source,
		health:  health,
		hub:     hub,
		pub:     pub,
		packer:  layout.NewPacker(cfg.Canvas.Columns, cfg.Canvas.ColumnWidth, cfg.Canvas.Gap, cfg.Canvas.TargetMaxHeight),
		grid:    geometry.NewGrid(cfg.Canvas.ChunkWidth, cfg.Canvas.ChunkHeight),
		rootCtx: context.Background(),
	}
}

// SetRootContext sets the parent context for WebSocket sessions so they
// stop on server shutdown.
func (h *Handler) SetRootContext(ctx context.Context) {
	h.rootCtx = ctx
}

// SetBreakerState wires the circuit breaker state reporter for health
// output.
func (h *Handler) SetBreakerState(fn func() string) {
	h.breakerState = fn
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]string{"status": "alive"}, 0)
}

// HealthReady is the readiness probe; it fails when the store is
// unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "artwork store is not reachable", err)
		return
	}
	respondSuccess(w, map[string]string{"status": "ready"}, 0)
}

// Health reports overall status including session count and breaker state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "ok",
		"sessions": h.hub.SessionCount(),
	}
	if h.breakerState != nil {
		status["source_breaker"] = h.breakerState()
	}
	respondSuccess(w, status, 0)
}

// chunkRequest is the validated shape of a single-chunk query.
type chunkRequest struct {
	Count int `validate:"gt=0,lte=200"`
}

// Chunk serves one grid-mode chunk: a deterministic draw packed into
// positions, so stateless callers get the same layout the engine computes.
func (h *Handler) Chunk(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil {
		respondError(w, http.StatusBadRequest, "INVALID_COORD", "x and y must be integers", nil)
		return
	}

	req := chunkRequest{Count: getIntParam(r, "count", h.cfg.Canvas.ItemsPerChunk)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	seed := getInt64Param(r, "seed", h.cfg.Canvas.DefaultSeed)

	coord := geometry.ChunkCoord{X: x, Y: y}
	start := time.Now()
	items, err := h.source.FetchChunk(r.Context(), coord, req.Count, nil, seed)
	if err != nil {
		h.respondSourceError(w, err)
		return
	}

	respondSuccess(w, models.ChunkResponse{Chunk: h.buildRecord(coord, items)}, time.Since(start))
}

// batchRequest is the body of a batched chunk fetch.
type batchRequest struct {
	Coords []struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"coords" validate:"required,min=1,max=64"`
	Count   int      `json:"count"`
	Exclude []string `json:"exclude" validate:"max=10000"`
	Seed    int64    `json:"seed"`
}

// ChunkBatch resolves several chunks in one request, duplicate-free across
// the batch.
func (h *Handler) ChunkBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.Count <= 0 {
		req.Count = h.cfg.Canvas.ItemsPerChunk
	}
	if req.Seed == 0 {
		req.Seed = h.cfg.Canvas.DefaultSeed
	}

	coords := make([]geometry.ChunkCoord, 0, len(req.Coords))
	for _, c := range req.Coords {
		coords = append(coords, geometry.ChunkCoord{X: c.X, Y: c.Y})
	}

	start := time.Now()
	fetched, err := h.source.FetchBatch(r.Context(), coords, req.Count, req.Exclude, req.Seed)
	if err != nil {
		h.respondSourceError(w, err)
		return
	}

	chunks := make(map[string]*models.ChunkRecord, len(fetched))
	for key, items := range fetched {
		coord, perr := geometry.ParseKey(key)
		if perr != nil {
			continue
		}
		chunks[key] = h.buildRecord(coord, items)
	}
	respondSuccess(w, models.ChunkBatchResponse{Chunks: chunks}, time.Since(start))
}

// Similar serves the ranked pool for a focal artwork.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	focalID := chi.URLParam(r, "id")
	if focalID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "artwork id is required", nil)
		return
	}

	start := time.Now()
	pool, err := h.source.FetchSimilar(r.Context(), focalID)
	if err != nil {
		h.respondSourceError(w, err)
		return
	}
	respondSuccess(w, models.SimilarResponse{Pool: pool}, time.Since(start))
}

// SessionSnapshot serves a read-only snapshot of a live canvas session.
func (h *Handler) SessionSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	client := h.hub.Session(sessionID)
	if client == nil {
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no such canvas session", nil)
		return
	}
	respondSuccess(w, client.Engine().Snapshot(), 0)
}

// WebSocket upgrades the connection into a live canvas session with a
// dedicated engine.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := gorillaws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkWebSocketOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sessionID := logging.GenerateRequestID()
	eng := engine.New(sessionID, h.cfg, h.source, h.pub)
	client := ws.NewClient(sessionID, h.hub, conn, eng)

	go client.Run(h.rootCtx)
}

// checkWebSocketOrigin accepts same-host connections and any origin in the
// configured CORS allow list. "*" allows everything.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// buildRecord packs fetched items the same way the engine does.
func (h *Handler) buildRecord(coord geometry.ChunkCoord, items []models.Artwork) *models.ChunkRecord {
	placed := make([]models.PlacedArtwork, 0, len(items))
	for _, a := range items {
		placed = append(placed, models.PlacedArtwork{Artwork: a})
	}
	positions, bounds := h.packer.Pack(placed)
	return &models.ChunkRecord{
		ID:        coord.Key(),
		Coord:     coord,
		Items:     placed,
		Positions: positions,
		Bounds:    bounds,
		State:     models.ChunkStateReady,
	}
}

func (h *Handler) respondSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, artwork.ErrNotFound):
		respondError(w, http.StatusNotFound, "ARTWORK_NOT_FOUND", "artwork does not exist", nil)
	case errors.Is(err, artwork.ErrSourceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "artwork source temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "SOURCE_TIMEOUT", "artwork source timed out", err)
	default:
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "artwork source query failed", err)
	}
}
