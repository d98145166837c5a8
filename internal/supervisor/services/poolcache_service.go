// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package services

import (
	"context"
	"time"
)

// CacheMaintainer runs periodic maintenance until ctx is cancelled.
// *artwork.PoolCache satisfies this.
type CacheMaintainer interface {
	RunGC(ctx context.Context, interval time.Duration)
}

// PoolCacheGCService runs Badger value-log garbage collection for the
// similarity pool cache under supervision.
type PoolCacheGCService struct {
	cache    CacheMaintainer
	interval time.Duration
}

// NewPoolCacheGCService returns a GC loop over cache.
func NewPoolCacheGCService(cache CacheMaintainer, interval time.Duration) *PoolCacheGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PoolCacheGCService{cache: cache, interval: interval}
}

// Serve implements suture.Service.
func (s *PoolCacheGCService) Serve(ctx context.Context) error {
	s.cache.RunGC(ctx, s.interval)
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *PoolCacheGCService) String() string {
	return "pool-cache-gc"
}
