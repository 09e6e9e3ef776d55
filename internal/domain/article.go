package domain

import "time"

// Article is the output of a successful extraction, ready for the store
// coordinator. Content is the main body text with navigation and
// advertising markup stripped.
type Article struct {
	Title         string
	Content       string
	URL           string
	Author        string
	Description   string
	Source        string
	DomainID      string
	Language      string
	PublishedDate *time.Time
	QualityScore  float64
	Keywords      []string
	Metadata      JSONBMap
}

// ExtractedArticle is the relational record paired 1:1 with a crawled link.
// VectorID is nullable while the coordinator completes the dual write.
type ExtractedArticle struct {
	ID            string     `db:"id"             json:"id"`
	LinkID        string     `db:"link_id"        json:"link_id"`
	VectorID      *string    `db:"vector_id"      json:"vector_id,omitempty"`
	Title         string     `db:"title"          json:"title"`
	Author        *string    `db:"author"         json:"author,omitempty"`
	PublishedDate *time.Time `db:"published_date" json:"published_date,omitempty"`
	ContentLength int        `db:"content_length" json:"content_length"`
	QualityScore  float64    `db:"quality_score"  json:"quality_score"`
	DomainID      string     `db:"domain_id"      json:"domain_id"`
	Keywords      StringList `db:"keywords"       json:"keywords"`
	Metadata      JSONBMap   `db:"metadata"       json:"metadata"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
}

// ArticleVector is the vector-store object holding the embedding and the
// searchable text. LinkID is a soft back-pointer to the DiscoveredLink.
type ArticleVector struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	URL           string     `json:"url"`
	SiteName      string     `json:"site_name"`
	DomainID      string     `json:"domain_id"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	ExtractedAt   time.Time  `json:"extracted_at"`
	QualityScore  float64    `json:"quality_score"`
	Keywords      []string   `json:"keywords,omitempty"`
	LinkID        string     `json:"link_id"`
	Embedding     []float32  `json:"embedding"`
}

// ArticleHit is one semantic-retrieval result, enriched with link-store
// fields when available.
type ArticleHit struct {
	Vector       ArticleVector
	Similarity   float64
	SiteName     string
	PageType     string
	DiscoveredAt *time.Time
	LastCrawled  *time.Time
}

// CrawlStats accumulates per-site counters for one crawl run.
type CrawlStats struct {
	ID                string    `db:"id"                 json:"id"`
	RunID             string    `db:"run_id"             json:"run_id"`
	SiteID            string    `db:"site_id"            json:"site_id"`
	DomainID          string    `db:"domain_id"          json:"domain_id"`
	LinksDiscovered   int       `db:"links_discovered"   json:"links_discovered"`
	LinksCrawled      int       `db:"links_crawled"      json:"links_crawled"`
	ArticlesExtracted int       `db:"articles_extracted" json:"articles_extracted"`
	Errors            int       `db:"errors"             json:"errors"`
	RecordedAt        time.Time `db:"recorded_at"        json:"recorded_at"`
}
