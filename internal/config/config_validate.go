// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package config

import (
	"errors"
	"fmt"
)

// Validation errors exposed for tests and callers that branch on them.
var (
	ErrInvalidPort        = errors.New("server port must be between 1 and 65535")
	ErrInvalidChunkExtent = errors.New("canvas chunk extent must be positive")
	ErrInvalidLimits      = errors.New("canvas soft limit must not exceed the hard limit")
	ErrInvalidThresholds  = errors.New("ring thresholds must be non-increasing values in [0,1]")
)

// Validate checks the configuration for internally consistent values.
// It is called by Load after unmarshaling and may be called directly on
// hand-built configs in tests.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Canvas.ChunkWidth <= 0 || c.Canvas.ChunkHeight <= 0 {
		return fmt.Errorf("%w: got %gx%g", ErrInvalidChunkExtent, c.Canvas.ChunkWidth, c.Canvas.ChunkHeight)
	}
	if c.Canvas.SoftLimit > 0 && c.Canvas.HardLimit > 0 && c.Canvas.SoftLimit > c.Canvas.HardLimit {
		return fmt.Errorf("%w: soft %d, hard %d", ErrInvalidLimits, c.Canvas.SoftLimit, c.Canvas.HardLimit)
	}
	if c.Canvas.MaxCachedChunks > 0 && c.Canvas.HardLimit > c.Canvas.MaxCachedChunks {
		return fmt.Errorf("canvas hard limit %d exceeds max cached chunks %d", c.Canvas.HardLimit, c.Canvas.MaxCachedChunks)
	}
	if c.Canvas.ItemsPerChunk <= 0 {
		return errors.New("canvas items_per_chunk must be positive")
	}
	if c.Canvas.Columns <= 0 {
		return errors.New("canvas columns must be positive")
	}

	if c.Rings.Capacity <= 0 {
		return errors.New("rings capacity must be positive")
	}
	if c.Rings.MaxRing <= 0 {
		return errors.New("rings max_ring must be positive")
	}
	prev := 1.0
	for i, th := range c.Rings.Thresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("%w: index %d is %g", ErrInvalidThresholds, i, th)
		}
		if th > prev {
			return fmt.Errorf("%w: index %d rises from %g to %g", ErrInvalidThresholds, i, prev, th)
		}
		prev = th
	}

	if c.Database.Path == "" {
		return errors.New("database path must not be empty")
	}
	if c.PoolCache.Enabled && c.PoolCache.Path == "" {
		return errors.New("pool cache path must not be empty when enabled")
	}
	if c.Prefetch.Interval <= 0 {
		return errors.New("prefetch interval must be positive")
	}
	if c.Source.Concurrency <= 0 {
		return errors.New("source concurrency must be positive")
	}

	return nil
}
