// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/atelier/config.yaml",
	"/etc/atelier/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8791,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Canvas: CanvasConfig{
			ChunkWidth:      1200,
			ChunkHeight:     1600,
			Buffer:          400,
			CullRadius:      4000,
			SoftLimit:       24,
			HardLimit:       60,
			MaxCachedChunks: 120,
			ItemsPerChunk:   20,
			Columns:         4,
			ColumnWidth:     280,
			Gap:             16,
			TargetMaxHeight: 1550,
			ClickThreshold:  6,
			DefaultSeed:     1,
		},
		Rings: RingsConfig{
			Capacity:   20,
			Thresholds: []float64{0.45, 0.25, 0},
			MaxRing:    3,
		},
		Database: DatabaseConfig{
			Path:         "/data/atelier.duckdb",
			MaxMemory:    "1GB",
			Threads:      0, // 0 = runtime.NumCPU()
			SeedMockData: false,
			SeedCount:    5000,
		},
		PoolCache: PoolCacheConfig{
			Enabled: true,
			Path:    "/data/poolcache",
			TTL:     time.Hour,
		},
		Prefetch: PrefetchConfig{
			Interval: 2 * time.Second,
		},
		Source: SourceConfig{
			FetchTimeout:            10 * time.Second,
			RatePerSecond:           50,
			Burst:                   20,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
			BreakerMaxRequests:      2,
			Concurrency:             4,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// sectionPrefixes maps environment variable prefixes to koanf sections.
// Longest prefixes are listed first so POOL_CACHE_ wins over no match.
var sectionPrefixes = []struct {
	prefix  string
	section string
}{
	{"POOL_CACHE_", "pool_cache"},
	{"DATABASE_", "database"},
	{"PREFETCH_", "prefetch"},
	{"SECURITY_", "security"},
	{"LOGGING_", "logging"},
	{"SERVER_", "server"},
	{"CANVAS_", "canvas"},
	{"SOURCE_", "source"},
	{"RINGS_", "rings"},
	{"LOG_", "logging"},
}

// envTransformFunc maps environment variable names to koanf paths:
// CANVAS_CHUNK_WIDTH -> canvas.chunk_width, LOG_LEVEL -> logging.level.
// Variables without a known prefix are ignored.
func envTransformFunc(key, value string) (string, interface{}) {
	for _, sp := range sectionPrefixes {
		if strings.HasPrefix(key, sp.prefix) {
			rest := strings.ToLower(strings.TrimPrefix(key, sp.prefix))
			if rest == "" {
				return "", nil
			}
			return sp.section + "." + rest, value
		}
	}
	return "", nil
}

// Load loads the configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.ProviderWithValue("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields converts comma-separated env strings into slices for
// the known slice-typed config paths. YAML-sourced values arrive as slices
// already and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	if val := k.Get("security.cors_origins"); val != nil {
		if s, ok := val.(string); ok {
			k.Delete("security.cors_origins")
			if err := k.Set("security.cors_origins", splitTrimmed(s)); err != nil {
				return err
			}
		}
	}

	if val := k.Get("rings.thresholds"); val != nil {
		if s, ok := val.(string); ok {
			parts := splitTrimmed(s)
			thresholds := make([]float64, 0, len(parts))
			for _, p := range parts {
				f, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return fmt.Errorf("invalid ring threshold %q: %w", p, err)
				}
				thresholds = append(thresholds, f)
			}
			k.Delete("rings.thresholds")
			if err := k.Set("rings.thresholds", thresholds); err != nil {
				return err
			}
		}
	}

	return nil
}

// splitTrimmed splits a comma-separated string and trims whitespace,
// dropping empty elements.
func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
