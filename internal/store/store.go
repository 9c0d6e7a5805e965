// Package store persists the rewrite memory: previously refined text keyed
// by source text, model and tone, plus an audit trail of runs. Backed by
// SQLite; the schema is created on open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/dochumanize/internal"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rewrite_requests (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		model TEXT NOT NULL,
		tone TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rewrite_results (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		batch_index INTEGER NOT NULL,
		service_name TEXT,
		refined_text TEXT,
		latency_ms INTEGER,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (request_id) REFERENCES rewrite_requests(id)
	);

	CREATE TABLE IF NOT EXISTS rewrite_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		model TEXT NOT NULL,
		tone TEXT NOT NULL DEFAULT '',
		refined_text TEXT NOT NULL,
		service_used TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, model, tone)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON rewrite_memory(source_text, model, tone);
	CREATE INDEX IF NOT EXISTS idx_results_request ON rewrite_results(request_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) SaveRequest(ctx context.Context, req internal.RewriteRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewrite_requests (id, input_path, model, tone, created_at) VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.InputPath, req.Model, req.Tone, req.Timestamp)
	return err
}

func (s *Store) SaveResult(ctx context.Context, requestID string, batchIndex int, serviceName, refinedText string, latencyMs int, errMsg string) error {
	id := fmt.Sprintf("%s_%d", requestID, batchIndex)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewrite_results (id, request_id, batch_index, service_name, refined_text, latency_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, requestID, batchIndex, serviceName, refinedText, latencyMs, errMsg)
	return err
}

// GetCachedRewrite looks up previously refined text for the same source
// text, model and tone. A hit bumps the entry's usage counters.
func (s *Store) GetCachedRewrite(ctx context.Context, sourceText, model, tone string) (string, bool, error) {
	var refinedText string
	var invalidated bool

	key := normalizeText(sourceText)
	err := s.db.QueryRowContext(ctx,
		`SELECT refined_text, invalidated FROM rewrite_memory WHERE source_text = ? AND model = ? AND tone = ?`,
		key, model, tone).Scan(&refinedText, &invalidated)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE rewrite_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND model = ? AND tone = ?`,
		time.Now(), key, model, tone)

	return refinedText, true, err
}

func (s *Store) SaveToMemory(ctx context.Context, sourceText, model, tone, refinedText, serviceUsed string) error {
	id := fmt.Sprintf("mem_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rewrite_memory (id, source_text, model, tone, refined_text, service_used, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, normalizeText(sourceText), model, tone, refinedText, serviceUsed, time.Now(), time.Now())
	return err
}

// MemoryEntry is a row from the rewrite_memory table.
type MemoryEntry struct {
	ID          string
	SourceText  string
	Model       string
	Tone        string
	RefinedText string
	ServiceUsed string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises rewrite memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// InvalidateMemory marks an entry stale without removing it.
func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE rewrite_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a rewrite memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rewrite_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all rewrite memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rewrite_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all rewrite memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, model, tone, refined_text, service_used, usage_count, invalidated, last_used FROM rewrite_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.Model, &e.Tone, &e.RefinedText, &e.ServiceUsed, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the rewrite memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM rewrite_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
