// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package artwork

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/models"
)

// Key prefix for cached similarity pools in BadgerDB.
const poolKeyPrefix = "pool:"

// PoolCache persists similarity pools in BadgerDB with a TTL. Computing a
// pool is a full-collection cosine scan in DuckDB; repeated focus on the
// same artwork (the common browsing pattern) hits the cache instead.
type PoolCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenPoolCache opens (or creates) the BadgerDB cache at cfg.Path. An
// empty path opens an in-memory cache, which tests rely on.
func OpenPoolCache(cfg *config.PoolCacheConfig) (*PoolCache, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool cache: %w", err)
	}
	return &PoolCache{db: db, ttl: cfg.TTL}, nil
}

// Close releases the underlying database.
func (c *PoolCache) Close() error {
	return c.db.Close()
}

// Get returns the cached pool for a focal artwork, or (nil, nil) on miss.
func (c *PoolCache) Get(focalID string) (*models.SimilarPool, error) {
	var pool models.SimilarPool

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(poolKeyPrefix + focalID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pool)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.PoolCacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		metrics.PoolCacheMisses.Inc()
		return nil, fmt.Errorf("pool cache read: %w", err)
	}

	metrics.PoolCacheHits.Inc()
	return &pool, nil
}

// Set stores a pool with the configured TTL.
func (c *PoolCache) Set(pool *models.SimilarPool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(poolKeyPrefix+pool.FocalID), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// Invalidate drops the cached pool for one focal artwork.
func (c *PoolCache) Invalidate(focalID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(poolKeyPrefix + focalID))
	})
}

// RunGC runs Badger value-log garbage collection until ticker stop or
// context cancellation. Intended to run under the supervision tree.
func (c *PoolCache) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Debug().Err(err).Msg("Pool cache value log GC")
			}
		}
	}
}

// CachingSource decorates a Source with pool caching for FetchSimilar.
// Chunk fetches pass through untouched.
type CachingSource struct {
	inner Source
	cache *PoolCache
}

// NewCachingSource wraps inner with the given pool cache.
func NewCachingSource(inner Source, cache *PoolCache) *CachingSource {
	return &CachingSource{inner: inner, cache: cache}
}

// FetchChunk implements Source.
func (s *CachingSource) FetchChunk(ctx context.Context, coord geometry.ChunkCoord, count int, exclude []string, seed int64) ([]models.Artwork, error) {
	return s.inner.FetchChunk(ctx, coord, count, exclude, seed)
}

// FetchBatch implements Source.
func (s *CachingSource) FetchBatch(ctx context.Context, coords []geometry.ChunkCoord, count int, exclude []string, seed int64) (map[string][]models.Artwork, error) {
	return s.inner.FetchBatch(ctx, coords, count, exclude, seed)
}

// FetchSimilar implements Source, consulting the cache first. Cache
// failures degrade to a direct fetch rather than failing the request.
func (s *CachingSource) FetchSimilar(ctx context.Context, focalID string) (*models.SimilarPool, error) {
	pool, err := s.cache.Get(focalID)
	if err != nil {
		logging.Warn().Err(err).Str("focal_id", focalID).Msg("Pool cache read failed")
	}
	if pool != nil {
		return pool, nil
	}

	pool, err = s.inner.FetchSimilar(ctx, focalID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(pool); err != nil {
		logging.Warn().Err(err).Str("focal_id", focalID).Msg("Pool cache write failed")
	}
	return pool, nil
}
