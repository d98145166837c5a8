// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package artwork

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/models"
)

// ResilientSource wraps a Source with a circuit breaker and a rate
// limiter. A misbehaving backend trips the breaker instead of stalling
// every canvas session; the limiter smooths fetch bursts during fast pans.
type ResilientSource struct {
	inner   Source
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter
}

// NewResilientSource builds the wrapper from the source configuration.
// Uses the gobreaker v2 generic API with interface{} type parameter so one
// breaker covers all three fetch shapes.
func NewResilientSource(inner Source, cfg *config.SourceConfig) *ResilientSource {
	settings := gobreaker.Settings{
		Name:        "artwork-source",
		MaxRequests: cfg.BreakerMaxRequests,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A missing focal artwork is a caller error, not a backend
			// failure; it must not trip the breaker.
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Artwork source circuit breaker state changed")
		},
	}

	limit := rate.Limit(cfg.RatePerSecond)
	burst := cfg.Burst
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
		burst = 0
	}

	return &ResilientSource{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[interface{}](settings),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// State reports the breaker state for health endpoints.
func (r *ResilientSource) State() string {
	return r.breaker.State().String()
}

func (r *ResilientSource) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	result, err := r.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}

// FetchChunk implements Source.
func (r *ResilientSource) FetchChunk(ctx context.Context, coord geometry.ChunkCoord, count int, exclude []string, seed int64) ([]models.Artwork, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.inner.FetchChunk(ctx, coord, count, exclude, seed)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Artwork), nil
}

// FetchSimilar implements Source.
func (r *ResilientSource) FetchSimilar(ctx context.Context, focalID string) (*models.SimilarPool, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.inner.FetchSimilar(ctx, focalID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.SimilarPool), nil
}

// FetchBatch implements Source.
func (r *ResilientSource) FetchBatch(ctx context.Context, coords []geometry.ChunkCoord, count int, exclude []string, seed int64) (map[string][]models.Artwork, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.inner.FetchBatch(ctx, coords, count, exclude, seed)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]models.Artwork), nil
}
