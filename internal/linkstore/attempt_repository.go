package linkstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/newsloom/newsloom/internal/domain"
)

// AttemptRepository handles the append-only crawl attempt history.
// Rows are never updated; the only deletion path is the retention sweep.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new attempt repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create appends one attempt record.
func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.CrawlAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO crawl_attempts (id, link_id, attempted_at, success, response_ms,
		                            content_length, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.LinkID, attempt.AttemptedAt, attempt.Success,
		attempt.ResponseTime, attempt.ContentLength, attempt.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl attempt: %w", err)
	}

	return nil
}

// ListByLink returns the attempt history for one link, newest first.
func (r *AttemptRepository) ListByLink(ctx context.Context, linkID string, limit int) ([]*domain.CrawlAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, link_id, attempted_at, success, response_ms, content_length, error_message
		FROM crawl_attempts
		WHERE link_id = $1
		ORDER BY attempted_at DESC
		LIMIT $2
	`

	var attempts []*domain.CrawlAttempt
	err := r.db.SelectContext(ctx, &attempts, query, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl attempts: %w", err)
	}

	if attempts == nil {
		attempts = []*domain.CrawlAttempt{}
	}

	return attempts, nil
}

// PruneOlderThan removes attempts past the retention window. This is the
// single deletion path allowed by the append-only contract.
func (r *AttemptRepository) PruneOlderThan(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM crawl_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune crawl attempts: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", affectedErr)
	}

	return int(n), nil
}
