package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newsloom/newsloom/internal/domain"
)

// sitesFile mirrors the on-disk structure of sites.yml.
type sitesFile struct {
	Sites         map[string]domain.Site `yaml:"sites"`
	DomainMapping map[string][]string    `yaml:"domain_mapping"`
}

// SiteRegistry is the per-site configuration store.
type SiteRegistry struct {
	sites         map[string]domain.Site
	domainMapping map[string][]string
}

// LoadSites reads the site definitions from path.
func LoadSites(path string) (*SiteRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read sites file: %w", err)
	}

	var file sitesFile
	if unmarshalErr := yaml.Unmarshal(data, &file); unmarshalErr != nil {
		return nil, fmt.Errorf("registry: parse sites file: %w", unmarshalErr)
	}

	sites := make(map[string]domain.Site, len(file.Sites))
	for id, s := range file.Sites {
		s.ID = id
		sites[id] = s
	}

	return &SiteRegistry{sites: sites, domainMapping: file.DomainMapping}, nil
}

// NewSiteRegistry builds a registry from in-memory definitions.
func NewSiteRegistry(sites []domain.Site) *SiteRegistry {
	byID := make(map[string]domain.Site, len(sites))
	mapping := make(map[string][]string)
	for _, s := range sites {
		byID[s.ID] = s
		mapping[s.DomainID] = append(mapping[s.DomainID], s.ID)
	}
	return &SiteRegistry{sites: byID, domainMapping: mapping}
}

// Get returns the site with the given id.
func (r *SiteRegistry) Get(id string) (domain.Site, bool) {
	s, ok := r.sites[id]
	return s, ok
}

// All returns every site, sorted by id.
func (r *SiteRegistry) All() []domain.Site {
	out := make([]domain.Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveByDomain returns the active sites assigned to a domain, honouring
// the explicit domain_mapping when present and falling back to each site's
// own domain field otherwise.
func (r *SiteRegistry) ActiveByDomain(domainID string) []domain.Site {
	var ids []string
	if mapped, ok := r.domainMapping[domainID]; ok {
		ids = mapped
	} else {
		for id, s := range r.sites {
			if s.DomainID == domainID {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	out := make([]domain.Site, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.sites[id]; ok && s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Active returns every active site, sorted by priority descending then id.
func (r *SiteRegistry) Active() []domain.Site {
	out := make([]domain.Site, 0, len(r.sites))
	for _, s := range r.sites {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
