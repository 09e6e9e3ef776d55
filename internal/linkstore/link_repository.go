package linkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/newsloom/newsloom/internal/domain"
)

// linkSelectColumns lists columns for SELECT queries on discovered_links.
const linkSelectColumns = `id, site_id, url, url_hash, parent_url, depth, state,
	content_hash, discovered_at, last_crawled_at, crawl_count, error_count,
	created_at, updated_at`

// ErrLinkNotFound is returned when a link lookup matches no row.
var ErrLinkNotFound = errors.New("discovered link not found")

// LinkRepository handles database operations for discovered links.
type LinkRepository struct {
	db *sqlx.DB
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// CreateBatch inserts candidate links, silently skipping url_hash
// duplicates. Returns the number of newly created rows.
func (r *LinkRepository) CreateBatch(ctx context.Context, links []*domain.DiscoveredLink) (int, error) {
	query := `
		INSERT INTO discovered_links (id, site_id, url, url_hash, parent_url, depth,
		                              state, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url_hash) DO NOTHING
	`

	created := 0
	for _, link := range links {
		if link.ID == "" {
			link.ID = uuid.New().String()
		}
		if link.State == "" {
			link.State = domain.LinkStateNew
		}
		if link.DiscoveredAt.IsZero() {
			link.DiscoveredAt = time.Now().UTC()
		}

		result, err := r.db.ExecContext(ctx, query,
			link.ID, link.SiteID, link.URL, link.URLHash,
			link.ParentURL, link.Depth, link.State, link.DiscoveredAt,
		)
		if err != nil {
			return created, fmt.Errorf("failed to insert discovered link: %w", err)
		}

		n, affectedErr := result.RowsAffected()
		if affectedErr != nil {
			return created, fmt.Errorf("failed to get rows affected: %w", affectedErr)
		}
		created += int(n)
	}

	return created, nil
}

// GetByID retrieves a discovered link by its id.
func (r *LinkRepository) GetByID(ctx context.Context, id string) (*domain.DiscoveredLink, error) {
	var link domain.DiscoveredLink
	query := `SELECT ` + linkSelectColumns + ` FROM discovered_links WHERE id = $1`

	err := r.db.GetContext(ctx, &link, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrLinkNotFound, id)
		}
		return nil, fmt.Errorf("failed to get discovered link: %w", err)
	}

	return &link, nil
}

// SelectCrawlable returns up to limit links for a site that are eligible
// for crawling: NEW links, plus CRAWLED/FAILED links whose last crawl is
// older than refreshAfter and whose error_count is below maxFailures.
// Ordered by discovered_at ascending.
func (r *LinkRepository) SelectCrawlable(
	ctx context.Context,
	siteID string,
	limit int,
	refreshAfter time.Duration,
	maxFailures int,
) ([]*domain.DiscoveredLink, error) {
	if limit <= 0 {
		limit = 50
	}

	cutoff := time.Now().UTC().Add(-refreshAfter)

	query := `
		SELECT ` + linkSelectColumns + `
		FROM discovered_links
		WHERE site_id = $1
		  AND (
		    state = 'new'
		    OR (state IN ('crawled', 'failed')
		        AND last_crawled_at < $2
		        AND error_count < $3)
		  )
		ORDER BY discovered_at ASC
		LIMIT $4
	`

	var links []*domain.DiscoveredLink
	err := r.db.SelectContext(ctx, &links, query, siteID, cutoff, maxFailures, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select crawlable links: %w", err)
	}

	if links == nil {
		links = []*domain.DiscoveredLink{}
	}

	return links, nil
}

// Claim transitions a link to CRAWLING, guarded by its current state so
// concurrent workers cannot claim the same link twice. Returns false when
// the guard did not match.
func (r *LinkRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE discovered_links
		SET state = 'crawling', updated_at = NOW()
		WHERE id = $1 AND state IN ('new', 'crawled', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim link: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", affectedErr)
	}

	return n > 0, nil
}

// MarkCrawled transitions a CRAWLING link to CRAWLED, recording the
// content hash and bumping the crawl counter.
func (r *LinkRepository) MarkCrawled(ctx context.Context, id, contentHash string) error {
	query := `
		UPDATE discovered_links
		SET state = 'crawled', content_hash = $2, last_crawled_at = NOW(),
		    crawl_count = crawl_count + 1, updated_at = NOW()
		WHERE id = $1 AND state = 'crawling'
	`

	result, err := r.db.ExecContext(ctx, query, id, contentHash)
	return execRequireRows(result, err, fmt.Errorf("%w or not crawling: %s", ErrLinkNotFound, id))
}

// MarkFailed transitions a CRAWLING link to FAILED. When countError is
// true the error counter is incremented and the link is promoted to
// BLOCKED once it reaches maxFailures. Politeness and relevance failures
// pass countError=false so they never block a link.
func (r *LinkRepository) MarkFailed(ctx context.Context, id string, countError bool, maxFailures int) error {
	increment := 0
	if countError {
		increment = 1
	}

	query := `
		UPDATE discovered_links
		SET error_count = error_count + $2,
		    state = CASE WHEN $2 > 0 AND error_count + $2 >= $3 THEN 'blocked' ELSE 'failed' END,
		    last_crawled_at = NOW(),
		    crawl_count = crawl_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND state = 'crawling'
	`

	result, err := r.db.ExecContext(ctx, query, id, increment, maxFailures)
	return execRequireRows(result, err, fmt.Errorf("%w or not crawling: %s", ErrLinkNotFound, id))
}

// FindLiveByContentHash returns a non-obsolete link carrying the given
// content hash, excluding the given id. Used for duplicate detection.
func (r *LinkRepository) FindLiveByContentHash(
	ctx context.Context,
	contentHash, excludeID string,
) (*domain.DiscoveredLink, error) {
	query := `
		SELECT ` + linkSelectColumns + `
		FROM discovered_links
		WHERE content_hash = $1 AND id != $2 AND state NOT IN ('obsolete', 'blocked')
		LIMIT 1
	`

	var link domain.DiscoveredLink
	err := r.db.GetContext(ctx, &link, query, contentHash, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find link by content hash: %w", err)
	}

	return &link, nil
}

// RecoverStale sweeps links left in CRAWLING back to NEW. Run at startup
// so a crashed process never strands links mid-attempt.
func (r *LinkRepository) RecoverStale(ctx context.Context) (int, error) {
	query := `
		UPDATE discovered_links
		SET state = 'new', updated_at = NOW()
		WHERE state = 'crawling'
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale links: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", affectedErr)
	}

	return int(n), nil
}

// MarkObsolete sweeps NEW and FAILED links that have not been successfully
// crawled within the given number of days. Returns the number of rows swept.
func (r *LinkRepository) MarkObsolete(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	query := `
		UPDATE discovered_links
		SET state = 'obsolete', updated_at = NOW()
		WHERE state IN ('new', 'failed')
		  AND discovered_at < $1
		  AND (last_crawled_at IS NULL OR last_crawled_at < $1)
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark obsolete links: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", affectedErr)
	}

	return int(n), nil
}

// ResetToNew forces a link back to NEW regardless of state. Used by the
// reconciler when a vector object disappeared and the link must be
// re-crawlable. The error counter is cleared so the repaired link starts
// with a fresh failure budget.
func (r *LinkRepository) ResetToNew(ctx context.Context, id string) error {
	query := `UPDATE discovered_links SET state = 'new', content_hash = NULL, error_count = 0, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrLinkNotFound, id))
}

// CountByState returns row counts grouped by lifecycle state.
func (r *LinkRepository) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM discovered_links GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count links by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if scanErr := rows.Scan(&state, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", scanErr)
		}
		counts[state] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate state counts: %w", rowsErr)
	}

	return counts, nil
}
