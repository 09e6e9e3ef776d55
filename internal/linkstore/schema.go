package linkstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the DDL for the relational store. Statements are idempotent so
// EnsureSchema can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	base_url    TEXT NOT NULL,
	domain_id   TEXT NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	config_blob JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS discovered_links (
	id              UUID PRIMARY KEY,
	site_id         TEXT NOT NULL REFERENCES sites(id),
	url             TEXT NOT NULL,
	url_hash        CHAR(64) NOT NULL UNIQUE,
	parent_url      TEXT,
	depth           INT NOT NULL DEFAULT 0,
	state           TEXT NOT NULL DEFAULT 'new',
	content_hash    CHAR(64),
	discovered_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_crawled_at TIMESTAMPTZ,
	crawl_count     INT NOT NULL DEFAULT 0,
	error_count     INT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_links_site_state
	ON discovered_links (site_id, state, discovered_at);
CREATE INDEX IF NOT EXISTS idx_links_content_hash
	ON discovered_links (content_hash) WHERE content_hash IS NOT NULL;

CREATE TABLE IF NOT EXISTS crawl_attempts (
	id             UUID PRIMARY KEY,
	link_id        UUID NOT NULL REFERENCES discovered_links(id),
	attempted_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	success        BOOLEAN NOT NULL,
	response_ms    BIGINT NOT NULL DEFAULT 0,
	content_length INT NOT NULL DEFAULT 0,
	error_message  TEXT
);

CREATE INDEX IF NOT EXISTS idx_attempts_link
	ON crawl_attempts (link_id, attempted_at);

CREATE TABLE IF NOT EXISTS extracted_articles (
	id             UUID PRIMARY KEY,
	link_id        UUID NOT NULL UNIQUE REFERENCES discovered_links(id),
	vector_id      TEXT,
	title          TEXT NOT NULL,
	author         TEXT,
	published_date TIMESTAMPTZ,
	content_length INT NOT NULL DEFAULT 0,
	quality_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	domain_id      TEXT NOT NULL,
	keywords       JSONB NOT NULL DEFAULT '[]',
	metadata       JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS crawl_stats (
	id                 UUID PRIMARY KEY,
	run_id             UUID NOT NULL,
	site_id            TEXT NOT NULL,
	domain_id          TEXT NOT NULL,
	links_discovered   INT NOT NULL DEFAULT 0,
	links_crawled      INT NOT NULL DEFAULT 0,
	articles_extracted INT NOT NULL DEFAULT 0,
	errors             INT NOT NULL DEFAULT 0,
	recorded_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
