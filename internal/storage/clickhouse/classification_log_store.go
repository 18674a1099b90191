package clickhouse

import (
	"context"
	"fmt"

	"announcement-radar/internal/domain"
	"announcement-radar/internal/storage"
)

// ClassificationLogStore implements storage.ClassificationLogStore using ClickHouse.
// The table is append-only; rows are never updated.
type ClassificationLogStore struct {
	conn *Conn
}

// NewClassificationLogStore creates a new ClassificationLogStore.
func NewClassificationLogStore(conn *Conn) *ClassificationLogStore {
	return &ClassificationLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClassificationLogStore = (*ClassificationLogStore)(nil)

// InsertBulk appends records in a single batch.
func (s *ClassificationLogStore) InsertBulk(ctx context.Context, records []*domain.ClassificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO classification_log (
			run_id, exchange, title, url, categories, confidence,
			token_count, attempts, status, error, duration_ms, classified_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		categories := r.Categories
		if categories == nil {
			categories = []string{}
		}
		err := batch.Append(
			r.RunID,
			r.Exchange,
			r.Title,
			r.URL,
			categories,
			r.Confidence,
			uint32(r.TokenCount),
			uint8(r.Attempts),
			string(r.Status),
			r.Error,
			r.DurationMs,
			r.ClassifiedAt.UTC(),
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append classification record: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByExchange retrieves records for an exchange, ordered by classified_at ASC.
func (s *ClassificationLogStore) GetByExchange(ctx context.Context, exchange string) ([]*domain.ClassificationRecord, error) {
	query := `
		SELECT run_id, exchange, title, url, categories, confidence,
		       token_count, attempts, status, error, duration_ms, classified_at
		FROM classification_log
		WHERE exchange = ?
		ORDER BY classified_at ASC
	`

	rows, err := s.conn.Query(ctx, query, exchange)
	if err != nil {
		return nil, fmt.Errorf("query classification log: %w", err)
	}
	defer rows.Close()

	var result []*domain.ClassificationRecord
	for rows.Next() {
		var (
			r          domain.ClassificationRecord
			tokenCount uint32
			attempts   uint8
			status     string
		)
		err := rows.Scan(
			&r.RunID,
			&r.Exchange,
			&r.Title,
			&r.URL,
			&r.Categories,
			&r.Confidence,
			&tokenCount,
			&attempts,
			&status,
			&r.Error,
			&r.DurationMs,
			&r.ClassifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classification record: %w", err)
		}
		r.TokenCount = int(tokenCount)
		r.Attempts = int(attempts)
		r.Status = domain.ClassificationStatus(status)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classification log: %w", err)
	}
	return result, nil
}

// CountByStatus returns the number of records per status.
func (s *ClassificationLogStore) CountByStatus(ctx context.Context) (map[domain.ClassificationStatus]int64, error) {
	rows, err := s.conn.Query(ctx, `SELECT status, count() FROM classification_log GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count classification log: %w", err)
	}
	defer rows.Close()

	result := make(map[domain.ClassificationStatus]int64)
	for rows.Next() {
		var (
			status string
			count  uint64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		result[domain.ClassificationStatus(status)] = int64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return result, nil
}
