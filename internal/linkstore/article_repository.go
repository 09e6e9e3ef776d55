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

// articleSelectColumns lists columns for SELECT queries on extracted_articles.
const articleSelectColumns = `id, link_id, vector_id, title, author, published_date,
	content_length, quality_score, domain_id, keywords, metadata, created_at`

// ErrArticleNotFound is returned when an article lookup matches no row.
var ErrArticleNotFound = errors.New("extracted article not found")

// ArticleRepository handles database operations for extracted articles.
// The relational row is the authoritative record; the vector object it
// points at is a projection.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Create inserts one extracted article row.
func (r *ArticleRepository) Create(ctx context.Context, article *domain.ExtractedArticle) error {
	if article.ID == "" {
		article.ID = uuid.New().String()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO extracted_articles (id, link_id, vector_id, title, author,
		                                published_date, content_length, quality_score,
		                                domain_id, keywords, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		article.ID, article.LinkID, article.VectorID, article.Title, article.Author,
		article.PublishedDate, article.ContentLength, article.QualityScore,
		article.DomainID, &article.Keywords, &article.Metadata, article.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert extracted article: %w", err)
	}

	return nil
}

// GetByLinkID retrieves the article row for a link, if one exists.
func (r *ArticleRepository) GetByLinkID(ctx context.Context, linkID string) (*domain.ExtractedArticle, error) {
	var article domain.ExtractedArticle
	query := `SELECT ` + articleSelectColumns + ` FROM extracted_articles WHERE link_id = $1`

	err := r.db.GetContext(ctx, &article, query, linkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: link %s", ErrArticleNotFound, linkID)
		}
		return nil, fmt.Errorf("failed to get extracted article: %w", err)
	}

	return &article, nil
}

// UpdateVectorID records or clears the vector object an article row points
// at. A nil vectorID marks the article as missing its projection.
func (r *ArticleRepository) UpdateVectorID(ctx context.Context, id string, vectorID *string) error {
	query := `UPDATE extracted_articles SET vector_id = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, vectorID)
	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrArticleNotFound, id))
}

// ListMissingVector returns article rows with no vector projection. The
// reconciler re-embeds and re-upserts these.
func (r *ArticleRepository) ListMissingVector(ctx context.Context, limit int) ([]*domain.ExtractedArticle, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + articleSelectColumns + `
		FROM extracted_articles
		WHERE vector_id IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	var articles []*domain.ExtractedArticle
	err := r.db.SelectContext(ctx, &articles, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles missing vectors: %w", err)
	}

	if articles == nil {
		articles = []*domain.ExtractedArticle{}
	}

	return articles, nil
}

// ListByDomain returns article rows for one domain, newest first.
func (r *ArticleRepository) ListByDomain(ctx context.Context, domainID string, limit int) ([]*domain.ExtractedArticle, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + articleSelectColumns + `
		FROM extracted_articles
		WHERE domain_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var articles []*domain.ExtractedArticle
	err := r.db.SelectContext(ctx, &articles, query, domainID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles by domain: %w", err)
	}

	if articles == nil {
		articles = []*domain.ExtractedArticle{}
	}

	return articles, nil
}

// DeleteByLinkID removes the article row for a link. Used by the cleanup
// sweep when a link is marked obsolete.
func (r *ArticleRepository) DeleteByLinkID(ctx context.Context, linkID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM extracted_articles WHERE link_id = $1`, linkID)
	if err != nil {
		return fmt.Errorf("failed to delete extracted article: %w", err)
	}
	return nil
}

// CountByDomain returns article row counts grouped by domain.
func (r *ArticleRepository) CountByDomain(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT domain_id, COUNT(*) FROM extracted_articles GROUP BY domain_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count articles by domain: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var domainID string
		var count int
		if scanErr := rows.Scan(&domainID, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", scanErr)
		}
		counts[domainID] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate domain counts: %w", rowsErr)
	}

	return counts, nil
}
