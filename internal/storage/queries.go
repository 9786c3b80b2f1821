package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunRecord is one finished summarization run.
type RunRecord struct {
	ID           int64
	DocumentPath string
	Summary      string
	ChunkTotal   int
	ChunkFailed  int
	Duration     time.Duration
	CreatedAt    time.Time
}

// SaveAPIKey stores or replaces the credential for a provider.
func (s *Store) SaveAPIKey(ctx context.Context, provider, key string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return errors.New("provider is empty")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is empty")
	}

	query := "insert or replace into api_keys (provider, key) values (?, ?)"

	_, err := s.db.ExecContext(ctx, query, provider, key)

	return err
}

// LoadAPIKey returns the stored credential for a provider, or an empty
// string when none was saved.
func (s *Store) LoadAPIKey(ctx context.Context, provider string) (string, error) {
	query := "select key from api_keys where provider = ?"

	var key string
	if err := s.db.QueryRowContext(ctx, query, provider).Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("execute query: %w", err)
	}

	return key, nil
}

// SaveRun records a finished run and its final summary.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	if strings.TrimSpace(rec.DocumentPath) == "" {
		return errors.New("document path is empty")
	}

	query := `insert into runs
		(document_path, summary, chunk_total, chunk_failed, duration_ms)
		values (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(
		ctx,
		query,
		rec.DocumentPath,
		rec.Summary,
		rec.ChunkTotal,
		rec.ChunkFailed,
		rec.Duration.Milliseconds(),
	)

	return err
}

// RecentRuns lists the newest finished runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `select id, document_path, summary, chunk_total, chunk_failed, duration_ms, created_at
		from runs order by id desc limit ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.log.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var durationMs int64

		if err := rows.Scan(
			&rec.ID,
			&rec.DocumentPath,
			&rec.Summary,
			&rec.ChunkTotal,
			&rec.ChunkFailed,
			&durationMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}
