package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linkpulse/linkpulse/internal/model"
)

// ClickLogRepository provides access to the append-only click log.
type ClickLogRepository struct {
	repo *Repository
}

// NewClickLogRepository creates a new ClickLogRepository.
func NewClickLogRepository(repo *Repository) *ClickLogRepository {
	return &ClickLogRepository{repo: repo}
}

// Append commits a single click log row in its own transaction.
// Rows are never deduplicated: a redelivered event produces a second row.
func (r *ClickLogRepository) Append(ctx context.Context, rec *model.ClickLogRecord) error {
	query := `
		INSERT INTO click_logs (id, short_code, timestamp, user_agent)
		VALUES ($1, $2, $3, $4)
	`

	err := pgx.BeginFunc(ctx, r.repo.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			rec.ID,
			rec.ShortCode,
			rec.Timestamp,
			rec.UserAgent,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("append click log: %w", err)
	}

	return nil
}

// CountByShortCode returns the number of logged clicks for a short code.
func (r *ClickLogRepository) CountByShortCode(ctx context.Context, shortCode string) (int64, error) {
	query := `SELECT COUNT(*) FROM click_logs WHERE short_code = $1`

	var count int64
	if err := r.repo.pool.QueryRow(ctx, query, shortCode).Scan(&count); err != nil {
		return 0, fmt.Errorf("count click logs: %w", err)
	}

	return count, nil
}

// ListByShortCode returns the most recent click log rows for a short code.
func (r *ClickLogRepository) ListByShortCode(ctx context.Context, shortCode string, limit int) ([]*model.ClickLogRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, short_code, timestamp, user_agent
		FROM click_logs
		WHERE short_code = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, shortCode, limit)
	if err != nil {
		return nil, fmt.Errorf("query click logs: %w", err)
	}
	defer rows.Close()

	var records []*model.ClickLogRecord
	for rows.Next() {
		var rec model.ClickLogRecord
		if err := rows.Scan(&rec.ID, &rec.ShortCode, &rec.Timestamp, &rec.UserAgent); err != nil {
			return nil, fmt.Errorf("scan click log: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}
