// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package config loads and validates the application configuration.
//
// Configuration is loaded via Koanf v2 with layered sources, highest
// priority last: built-in defaults, an optional YAML config file, then
// environment variables.
package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Canvas    CanvasConfig    `koanf:"canvas"`
	Rings     RingsConfig     `koanf:"rings"`
	Database  DatabaseConfig  `koanf:"database"`
	PoolCache PoolCacheConfig `koanf:"pool_cache"`
	Prefetch  PrefetchConfig  `koanf:"prefetch"`
	Source    SourceConfig    `koanf:"source"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// CanvasConfig holds the spatial chunk engine settings.
type CanvasConfig struct {
	// ChunkWidth and ChunkHeight are the chunk extent in world pixels.
	ChunkWidth  float64 `koanf:"chunk_width"`
	ChunkHeight float64 `koanf:"chunk_height"`

	// Buffer expands the viewport in world pixels so chunks load before
	// their edge scrolls into view.
	Buffer float64 `koanf:"buffer"`

	// CullRadius discards candidate chunks farther than this from the view
	// center. Zero disables the cull.
	CullRadius float64 `koanf:"cull_radius"`

	// SoftLimit and HardLimit bound the retained chunk population per
	// virtualization pass.
	SoftLimit int `koanf:"soft_limit"`
	HardLimit int `koanf:"hard_limit"`

	// MaxCachedChunks bounds the chunk record cache; least-recently-used
	// non-visible records are evicted past it.
	MaxCachedChunks int `koanf:"max_cached_chunks"`

	// ItemsPerChunk is the fetch count per chunk in grid mode.
	ItemsPerChunk int `koanf:"items_per_chunk"`

	// Masonry layout settings.
	Columns         int     `koanf:"columns"`
	ColumnWidth     float64 `koanf:"column_width"`
	Gap             float64 `koanf:"gap"`
	TargetMaxHeight float64 `koanf:"target_max_height"`

	// ClickThreshold is the accumulated pointer movement in pixels beyond
	// which a pointer-up suppresses the click.
	ClickThreshold float64 `koanf:"click_threshold"`

	// DefaultSeed seeds deterministic grid-mode fetch ordering.
	DefaultSeed int64 `koanf:"default_seed"`
}

// RingsConfig holds the similarity-mode ring assignment settings.
type RingsConfig struct {
	// Capacity is the maximum number of items per chunk.
	Capacity int `koanf:"capacity"`

	// Thresholds is the minimum similarity per ring, index 0 for ring 1.
	// Must be non-increasing.
	Thresholds []float64 `koanf:"thresholds"`

	// MaxRing is the outermost ring receiving ranked items.
	MaxRing int `koanf:"max_ring"`
}

// PoolLimit returns the similarity pool size needed to fill every chunk
// within MaxRing rings at full capacity.
func (r RingsConfig) PoolLimit() int {
	side := 2*r.MaxRing + 1
	return r.Capacity * (side*side - 1)
}

// DatabaseConfig holds DuckDB settings for the artwork store.
type DatabaseConfig struct {
	Path         string `koanf:"path"`
	MaxMemory    string `koanf:"max_memory"`
	Threads      int    `koanf:"threads"`
	SeedMockData bool   `koanf:"seed_mock_data"`
	SeedCount    int    `koanf:"seed_count"`
}

// PoolCacheConfig holds the Badger-backed similarity pool cache settings.
type PoolCacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

// PrefetchConfig holds the idle prefetch timer settings.
type PrefetchConfig struct {
	// Interval is the fixed re-evaluation period, independent of pointer
	// events.
	Interval time.Duration `koanf:"interval"`
}

// SourceConfig holds resilience settings for the artwork source.
type SourceConfig struct {
	// FetchTimeout bounds a single chunk fetch.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// RatePerSecond and Burst configure the fetch rate limiter.
	// RatePerSecond <= 0 disables limiting.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	// Circuit breaker settings.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`

	// Concurrency bounds parallel grid-mode fetches.
	Concurrency int `koanf:"concurrency"`
}

// SecurityConfig holds API protection settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
