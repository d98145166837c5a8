// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package artwork

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/atelier/internal/config"
	"github.com/tomtom215/atelier/internal/geometry"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/models"
)

// embeddingDim is the dimensionality of the artwork embedding vectors.
// All rows carry a FLOAT[embeddingDim] column; similarity is cosine over it.
const embeddingDim = 64

// Store is the DuckDB-backed artwork source. It serves deterministic
// per-chunk draws, similarity-ranked pools, and batch chunk resolution.
type Store struct {
	conn      *sql.DB
	cfg       *config.DatabaseConfig
	poolLimit int
}

// NewStore opens (or creates) the DuckDB database at cfg.Path and
// initializes the schema. poolLimit bounds the similarity pool size
// returned by FetchSimilar.
func NewStore(cfg *config.DatabaseConfig, poolLimit int) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists before DuckDB tries to create
	// the database file. 0750 per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments; the canvas schema only needs
	// built-in functions (hash, list_cosine_similarity).
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		conn:      conn,
		cfg:       cfg,
		poolLimit: poolLimit,
	}

	// DuckDB is an in-process engine; a small pool avoids write
	// contention while still allowing concurrent reads.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := s.initialize(); err != nil {
		if cerr := conn.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close database after init error")
		}
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// initialize creates the schema if it does not exist.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS artworks (
			id VARCHAR PRIMARY KEY,
			title VARCHAR NOT NULL,
			artist VARCHAR NOT NULL,
			year INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			image_url VARCHAR NOT NULL,
			embedding FLOAT[%d] NOT NULL
		)`, embeddingDim),
		`CREATE TABLE IF NOT EXISTS canvas_events (
			id VARCHAR PRIMARY KEY,
			session_id VARCHAR NOT NULL,
			event_type VARCHAR NOT NULL,
			chunk_key VARCHAR,
			focal_id VARCHAR,
			item_count INTEGER NOT NULL DEFAULT 0,
			occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_events_session ON canvas_events(session_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Conn returns the underlying SQL connection for packages that need
// direct access, such as the analytics event subscriber.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Count returns the total number of artwork rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count artworks: %w", err)
	}
	return n, nil
}

// FetchChunk returns up to count artworks for the given chunk coordinate.
// The draw is deterministic for a fixed (coord, seed): rows are ordered by
// a stable per-chunk hash, so the same coordinate always yields the same
// artworks in the same order when no exclusion narrows the pool.
func (s *Store) FetchChunk(ctx context.Context, coord geometry.ChunkCoord, count int, exclude []string, seed int64) ([]models.Artwork, error) {
	start := time.Now()

	salt := fmt.Sprintf("%d:%d:%d", seed, coord.X, coord.Y)
	query := `SELECT id, title, artist, year, width, height, image_url
		FROM artworks`
	args := []interface{}{}

	if len(exclude) > 0 {
		query += ` WHERE id NOT IN (` + placeholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY hash(id || '|' || ?) LIMIT ?`
	args = append(args, salt, count)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	metrics.RecordStoreQuery("fetch_chunk", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk %s: %w", coord.Key(), err)
	}
	defer closeRows(rows)

	return scanArtworks(rows)
}

// FetchSimilar returns the similarity-ranked pool for a focal artwork,
// ordered by descending cosine similarity over the embedding column. The
// focal artwork itself is excluded. Scores are normalized to [0,1].
func (s *Store) FetchSimilar(ctx context.Context, focalID string) (*models.SimilarPool, error) {
	start := time.Now()

	var exists bool
	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM artworks WHERE id = ?)`, focalID).Scan(&exists)
	if err != nil {
		metrics.RecordStoreQuery("fetch_similar", time.Since(start), err)
		return nil, fmt.Errorf("failed to check focal artwork: %w", err)
	}
	if !exists {
		metrics.RecordStoreQuery("fetch_similar", time.Since(start), ErrNotFound)
		return nil, fmt.Errorf("focal artwork %s: %w", focalID, ErrNotFound)
	}

	query := `SELECT a.id, a.title, a.artist, a.year, a.width, a.height, a.image_url,
			list_cosine_similarity(a.embedding, f.embedding) AS score
		FROM artworks a
		CROSS JOIN (SELECT embedding FROM artworks WHERE id = ?) f
		WHERE a.id <> ?
		ORDER BY score DESC
		LIMIT ?`

	rows, err := s.conn.QueryContext(ctx, query, focalID, focalID, s.poolLimit)
	metrics.RecordStoreQuery("fetch_similar", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch similar pool for %s: %w", focalID, err)
	}
	defer closeRows(rows)

	pool := &models.SimilarPool{FocalID: focalID}
	for rows.Next() {
		var item models.ScoredArtwork
		if err := rows.Scan(&item.ID, &item.Title, &item.Artist, &item.Year,
			&item.Width, &item.Height, &item.ImageURL, &item.Score); err != nil {
			return nil, fmt.Errorf("failed to scan scored artwork: %w", err)
		}
		// Cosine similarity lives in [-1,1]; the ring thresholds expect [0,1].
		item.Score = (item.Score + 1) / 2
		pool.Items = append(pool.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similar pool iteration failed: %w", err)
	}
	pool.Total = len(pool.Items)
	return pool, nil
}

// FetchBatch resolves several chunk coordinates in one call. The exclusion
// set grows as chunks are filled so no artwork appears twice across the
// returned map.
func (s *Store) FetchBatch(ctx context.Context, coords []geometry.ChunkCoord, count int, exclude []string, seed int64) (map[string][]models.Artwork, error) {
	result := make(map[string][]models.Artwork, len(coords))
	seen := make([]string, 0, len(exclude)+len(coords)*count)
	seen = append(seen, exclude...)

	for _, coord := range coords {
		items, err := s.FetchChunk(ctx, coord, count, seen, seed)
		if err != nil {
			return nil, fmt.Errorf("batch fetch failed at %s: %w", coord.Key(), err)
		}
		result[coord.Key()] = items
		for _, item := range items {
			seen = append(seen, item.ID)
		}
	}
	return result, nil
}

// RecordCanvasEvent persists one analytics event row. Failures are
// reported but non-fatal to the caller's flow.
func (s *Store) RecordCanvasEvent(ctx context.Context, id, sessionID, eventType, chunkKey, focalID string, itemCount int) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO canvas_events (id, session_id, event_type, chunk_key, focal_id, item_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, sessionID, eventType, nullable(chunkKey), nullable(focalID), itemCount)
	metrics.RecordStoreQuery("record_event", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record canvas event: %w", err)
	}
	return nil
}

// InsertArtworks bulk-inserts artwork rows with their embeddings inside a
// single transaction. Used by seeding and import paths.
func (s *Store) InsertArtworks(ctx context.Context, items []models.Artwork, embeddings [][]float32) error {
	if len(items) != len(embeddings) {
		return fmt.Errorf("artwork/embedding count mismatch: %d vs %d", len(items), len(embeddings))
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO artworks (id, title, artist, year, width, height, image_url, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, `+embeddingLiteralPlaceholder()+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare artwork insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, a := range items {
		args := make([]interface{}, 0, 7+embeddingDim)
		args = append(args, a.ID, a.Title, a.Artist, a.Year, a.Width, a.Height, a.ImageURL)
		for _, v := range embeddings[i] {
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert artwork %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artwork insert: %w", err)
	}
	return nil
}

// embeddingLiteralPlaceholder builds the list constructor for an embedding
// parameter: [?, ?, ...] with embeddingDim slots. The database/sql driver
// has no native []float32 binding for fixed-size DuckDB arrays.
func embeddingLiteralPlaceholder() string {
	parts := make([]string, embeddingDim)
	for i := range parts {
		parts[i] = "?"
	}
	return "[" + strings.Join(parts, ", ") + "]::FLOAT[" + fmt.Sprint(embeddingDim) + "]"
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

func scanArtworks(rows *sql.Rows) ([]models.Artwork, error) {
	var items []models.Artwork
	for rows.Next() {
		var a models.Artwork
		if err := rows.Scan(&a.ID, &a.Title, &a.Artist, &a.Year, &a.Width, &a.Height, &a.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan artwork: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("artwork iteration failed: %w", err)
	}
	return items, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close result rows")
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
