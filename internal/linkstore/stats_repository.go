package linkstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/newsloom/newsloom/internal/domain"
)

// StatsRepository records per-site rollups of crawl runs.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Create records one per-site rollup row.
func (r *StatsRepository) Create(ctx context.Context, stats *domain.CrawlStats) error {
	if stats.ID == "" {
		stats.ID = uuid.New().String()
	}
	if stats.RecordedAt.IsZero() {
		stats.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO crawl_stats (id, run_id, site_id, domain_id, links_discovered,
		                         links_crawled, articles_extracted, errors, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		stats.ID, stats.RunID, stats.SiteID, stats.DomainID,
		stats.LinksDiscovered, stats.LinksCrawled, stats.ArticlesExtracted,
		stats.Errors, stats.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl stats: %w", err)
	}

	return nil
}

// ListRecent returns rollup rows recorded within the last given number of
// days, newest first.
func (r *StatsRepository) ListRecent(ctx context.Context, days, limit int) ([]*domain.CrawlStats, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 100
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		SELECT id, run_id, site_id, domain_id, links_discovered, links_crawled,
		       articles_extracted, errors, recorded_at
		FROM crawl_stats
		WHERE recorded_at >= $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	var stats []*domain.CrawlStats
	err := r.db.SelectContext(ctx, &stats, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl stats: %w", err)
	}

	if stats == nil {
		stats = []*domain.CrawlStats{}
	}

	return stats, nil
}
