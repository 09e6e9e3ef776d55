package linkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/newsloom/newsloom/internal/domain"
)

// siteSelectColumns lists columns for SELECT queries on sites.
const siteSelectColumns = `id, name, base_url, domain_id, active, config_blob`

// ErrSiteNotFound is returned when a site lookup matches no row.
var ErrSiteNotFound = errors.New("site not found")

// SiteRepository handles database operations for sites.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a new site repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Upsert creates the site on first encounter and refreshes its
// configuration blob on every crawl pass. Sites are never deleted, only
// deactivated through the config refresh.
func (r *SiteRepository) Upsert(ctx context.Context, site *domain.SiteRecord) error {
	query := `
		INSERT INTO sites (id, name, base_url, domain_id, active, config_blob)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			domain_id = EXCLUDED.domain_id,
			active = EXCLUDED.active,
			config_blob = EXCLUDED.config_blob,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		site.ID, site.Name, site.BaseURL, site.DomainID, site.Active, &site.ConfigBlob,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert site: %w", err)
	}

	return nil
}

// GetByID retrieves a site by its id.
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*domain.SiteRecord, error) {
	var site domain.SiteRecord
	query := `SELECT ` + siteSelectColumns + ` FROM sites WHERE id = $1`

	err := r.db.GetContext(ctx, &site, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, id)
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	return &site, nil
}

// List returns every persisted site.
func (r *SiteRepository) List(ctx context.Context) ([]*domain.SiteRecord, error) {
	var sites []*domain.SiteRecord
	query := `SELECT ` + siteSelectColumns + ` FROM sites ORDER BY id`

	err := r.db.SelectContext(ctx, &sites, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	if sites == nil {
		sites = []*domain.SiteRecord{}
	}

	return sites, nil
}
