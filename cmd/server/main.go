// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package main is the entry point for the Atelier server.
//
// Atelier serves an infinite pannable canvas of artwork chunks. Sessions
// connect over WebSocket and drive a per-session chunk engine; a REST API
// exposes stateless chunk and similarity queries over the same store.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: settings from environment variables and config files (Koanf v2)
//  2. Artwork store: DuckDB with embedding-based similarity queries
//  3. Pool cache (optional): Badger-backed similarity pool cache
//  4. Source decorators: caching, rate limiting, circuit breaker
//  5. Event bus: Watermill in-process pub/sub with a DuckDB recorder
//  6. WebSocket hub: per-session canvas engines
//  7. HTTP server: REST API plus /ws and /metrics
//
// All long-running components run under a suture supervision tree and shut
// down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/atelier/internal/api"
	"github.com/tomtom215/atelier/internal/artwork"
	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/events"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/supervisor"
	"github.com/tomtom215/atelier/internal/supervisor/services"
	ws "github.com/tomtom215/atelier/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("items_per_chunk", cfg.Canvas.ItemsPerChunk).
		Bool("pool_cache", cfg.PoolCache.Enabled).
		Msg("Configuration loaded")

	// Artwork store
	store, err := artwork.NewStore(&cfg.Database, cfg.Rings.PoolLimit())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize artwork store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing artwork store")
		}
	}()
	logging.Info().Msg("Artwork store initialized")

	if cfg.Database.SeedMockData {
		if err := artwork.Seed(context.Background(), store, cfg.Database.SeedCount, cfg.Canvas.DefaultSeed); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed mock artworks")
		}
	}

	// Source decorator chain: store -> pool cache -> resilience
	var source artwork.Source = store
	var poolCache *artwork.PoolCache
	if cfg.PoolCache.Enabled {
		poolCache, err = artwork.OpenPoolCache(&cfg.PoolCache)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open similarity pool cache")
		}
		defer func() {
			if err := poolCache.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing pool cache")
			}
		}()
		source = artwork.NewCachingSource(source, poolCache)
		logging.Info().Str("path", cfg.PoolCache.Path).Msg("Similarity pool cache enabled")
	}
	resilient := artwork.NewResilientSource(source, &cfg.Source)

	// Event bus and hub
	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	hub := ws.NewHub()

	// Shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Supervisor tree; sutureslog speaks slog, bridged from zerolog
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	handler := api.NewHandler(cfg, resilient, store, hub, bus)
	handler.SetRootContext(ctx)
	handler.SetBreakerState(resilient.State)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Data layer services
	tree.AddDataService(events.NewRecorder(bus, store))
	if poolCache != nil {
		tree.AddDataService(services.NewPoolCacheGCService(poolCache, 5*time.Minute))
	}

	// Session layer services
	tree.AddSessionService(hub)
	tree.AddSessionService(services.NewPrefetchService(hub, cfg.Prefetch.Interval))

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
