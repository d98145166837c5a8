// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package services

import (
	"context"
	"time"
)

// SessionEnsurer triggers visible-set re-evaluation across sessions.
// *websocket.Hub satisfies this.
type SessionEnsurer interface {
	EnsureAll()
}

// PrefetchService ticks at a fixed interval and asks every session to
// re-evaluate its visible chunks, so chunks that failed to load are
// retried without waiting for pointer input.
type PrefetchService struct {
	hub      SessionEnsurer
	interval time.Duration
}

// NewPrefetchService returns a prefetch timer over hub.
func NewPrefetchService(hub SessionEnsurer, interval time.Duration) *PrefetchService {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PrefetchService{hub: hub, interval: interval}
}

// Serve implements suture.Service.
func (s *PrefetchService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.hub.EnsureAll()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *PrefetchService) String() string {
	return "prefetch-timer"
}
