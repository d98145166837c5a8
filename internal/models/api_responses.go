// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. It provides a consistent structure for successful and error
// responses, with metadata for observability and caching.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
//
//   - Timestamp: server time when the response was generated
//   - QueryTimeMS: store query execution time in milliseconds (0 if cached)
//   - Cached: whether the response was served from cache
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError carries structured error details.
//
//   - Code: machine-readable code (e.g. "VALIDATION_ERROR", "STORE_ERROR")
//   - Message: human-readable message
//   - Details: additional context (field names, constraints)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ChunkResponse is the payload for single-chunk grid requests.
type ChunkResponse struct {
	Chunk *ChunkRecord `json:"chunk"`
}

// ChunkBatchResponse maps chunk keys to fetched records for the batched
// grid endpoint.
type ChunkBatchResponse struct {
	Chunks map[string]*ChunkRecord `json:"chunks"`
}

// SimilarResponse is the payload for the ranked-pool endpoint.
type SimilarResponse struct {
	Pool *SimilarPool `json:"pool"`
}
