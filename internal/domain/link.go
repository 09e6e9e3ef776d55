// Package domain provides the record types shared across the pipeline.
package domain

import "time"

// DiscoveredLink lifecycle states.
const (
	LinkStateNew      = "new"
	LinkStateCrawling = "crawling"
	LinkStateCrawled  = "crawled"
	LinkStateFailed   = "failed"
	LinkStateBlocked  = "blocked"
	LinkStateObsolete = "obsolete"
)

// DiscoveredLink is a candidate article URL tracked through its lifecycle.
// url_hash is the SHA-256 of the canonicalised URL and is unique across
// the whole table; content_hash is set after a successful extraction.
type DiscoveredLink struct {
	ID            string     `db:"id"              json:"id"`
	SiteID        string     `db:"site_id"         json:"site_id"`
	URL           string     `db:"url"             json:"url"`
	URLHash       string     `db:"url_hash"        json:"url_hash"`
	ParentURL     *string    `db:"parent_url"      json:"parent_url,omitempty"`
	Depth         int        `db:"depth"           json:"depth"`
	State         string     `db:"state"           json:"state"`
	ContentHash   *string    `db:"content_hash"    json:"content_hash,omitempty"`
	DiscoveredAt  time.Time  `db:"discovered_at"   json:"discovered_at"`
	LastCrawledAt *time.Time `db:"last_crawled_at" json:"last_crawled_at,omitempty"`
	CrawlCount    int        `db:"crawl_count"     json:"crawl_count"`
	ErrorCount    int        `db:"error_count"     json:"error_count"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}

// CrawlAttempt is one append-only record of trying to fetch and extract a link.
type CrawlAttempt struct {
	ID            string    `db:"id"              json:"id"`
	LinkID        string    `db:"link_id"         json:"link_id"`
	AttemptedAt   time.Time `db:"attempted_at"    json:"attempted_at"`
	Success       bool      `db:"success"         json:"success"`
	ResponseTime  int64     `db:"response_ms"     json:"response_ms"`
	ContentLength int       `db:"content_length"  json:"content_length"`
	ErrorMessage  *string   `db:"error_message"   json:"error_message,omitempty"`
}
