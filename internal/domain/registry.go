package domain

// Domain is a curated subject area. Declared at configuration load and
// immutable at runtime.
type Domain struct {
	ID          string         `mapstructure:"-"           yaml:"-"`
	Name        string         `mapstructure:"name"        yaml:"name"`
	Description string         `mapstructure:"description" yaml:"description"`
	Active      bool           `mapstructure:"active"      yaml:"active"`
	Keywords    []string       `mapstructure:"keywords"    yaml:"keywords"`
	MaxResults  map[string]int `mapstructure:"max_results" yaml:"max_results"`

	// CollectionPrefix overrides the default vector collection prefix.
	CollectionPrefix string `mapstructure:"vector_collection_prefix" yaml:"vector_collection_prefix"`
}

// DiscoveryPage is one configured discovery entry page for a site.
type DiscoveryPage struct {
	URL      string `mapstructure:"url"       yaml:"url"`
	Active   bool   `mapstructure:"active"    yaml:"active"`
	MaxLinks int    `mapstructure:"max_links" yaml:"max_links"`
}

// Site is a news source website assigned to exactly one Domain.
type Site struct {
	ID             string                   `mapstructure:"-"               yaml:"-"`
	Name           string                   `mapstructure:"name"            yaml:"name"`
	BaseURL        string                   `mapstructure:"base_url"        yaml:"base_url"`
	DomainID       string                   `mapstructure:"domain"          yaml:"domain"`
	Active         bool                     `mapstructure:"active"          yaml:"active"`
	Priority       int                      `mapstructure:"priority"        yaml:"priority"`
	Language       string                   `mapstructure:"language"        yaml:"language"`
	DiscoveryPages map[string]DiscoveryPage `mapstructure:"discovery_pages" yaml:"discovery_pages"`
}

// SiteRecord is the persisted form of a Site in the link store. The config
// blob keeps the full site configuration as opaque JSON.
type SiteRecord struct {
	ID         string   `db:"id"          json:"id"`
	Name       string   `db:"name"        json:"name"`
	BaseURL    string   `db:"base_url"    json:"base_url"`
	DomainID   string   `db:"domain_id"   json:"domain_id"`
	Active     bool     `db:"active"      json:"active"`
	ConfigBlob JSONBMap `db:"config_blob" json:"config_blob"`
}
