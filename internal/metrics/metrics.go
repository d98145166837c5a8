// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package metrics provides Prometheus instrumentation for the chunk
// engine, the artwork store, and the API layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chunk cache metrics.
	ChunkCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunk_cache_hits_total",
			Help: "Total number of chunk cache hits",
		},
	)

	ChunkCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunk_cache_misses_total",
			Help: "Total number of chunk cache misses",
		},
	)

	ChunkCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chunk_cache_evictions_total",
			Help: "Total number of chunk records evicted under the LRU bound",
		},
	)

	ChunkCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chunk_cache_entries",
			Help: "Current number of cached chunk records",
		},
	)

	// Chunk fetch metrics.
	ChunkFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chunk_fetch_duration_seconds",
			Help:    "Duration of artwork source fetches per chunk",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"}, // "grid", "similarity", "batch"
	)

	ChunkFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_fetch_errors_total",
			Help: "Total number of failed chunk fetches",
		},
		[]string{"mode", "error_type"},
	)

	StaleFocalDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_focal_discards_total",
			Help: "Fetch results discarded because the focal changed mid-flight",
		},
	)

	// Ring assignment metrics.
	RingAssignedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_assigned_items_total",
			Help: "Items placed by the ring assignment, by kind",
		},
		[]string{"kind"}, // "ranked", "filler"
	)

	// Similarity pool cache metrics.
	PoolCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_cache_hits_total",
			Help: "Similarity pool cache hits",
		},
	)

	PoolCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_cache_misses_total",
			Help: "Similarity pool cache misses",
		},
	)

	// Store metrics.
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of DuckDB artwork store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of DuckDB artwork store query errors",
		},
		[]string{"operation"},
	)

	// Session metrics.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_active_sessions",
			Help: "Current number of connected canvas sessions",
		},
	)

	// API metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreQuery records one store query with its outcome.
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}
