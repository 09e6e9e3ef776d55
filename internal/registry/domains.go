// Package registry loads and serves the domain and site configuration.
// Both registries are built once at startup and are immutable afterwards.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newsloom/newsloom/internal/domain"
)

// domainsFile mirrors the on-disk structure of domains.yml.
type domainsFile struct {
	Domains map[string]domain.Domain `yaml:"domains"`
}

// DomainRegistry is the authoritative list of topical domains.
type DomainRegistry struct {
	domains map[string]domain.Domain
	prefix  string
	env     string
}

// LoadDomains reads the domain definitions from path. prefix is the default
// vector-collection prefix; env suffixes derived collection names.
func LoadDomains(path, prefix, env string) (*DomainRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read domains file: %w", err)
	}

	var file domainsFile
	if unmarshalErr := yaml.Unmarshal(data, &file); unmarshalErr != nil {
		return nil, fmt.Errorf("registry: parse domains file: %w", unmarshalErr)
	}

	if len(file.Domains) == 0 {
		return nil, fmt.Errorf("registry: no domains defined in %s", path)
	}

	domains := make(map[string]domain.Domain, len(file.Domains))
	for id, d := range file.Domains {
		d.ID = id
		domains[id] = d
	}

	return &DomainRegistry{domains: domains, prefix: prefix, env: env}, nil
}

// NewDomainRegistry builds a registry from in-memory definitions. Used by
// tests and by callers that assemble configuration programmatically.
func NewDomainRegistry(domains []domain.Domain, prefix, env string) *DomainRegistry {
	byID := make(map[string]domain.Domain, len(domains))
	for _, d := range domains {
		byID[d.ID] = d
	}
	return &DomainRegistry{domains: byID, prefix: prefix, env: env}
}

// Get returns the domain with the given id.
func (r *DomainRegistry) Get(id string) (domain.Domain, bool) {
	d, ok := r.domains[id]
	return d, ok
}

// GetActive returns the domain only if it exists and is active.
func (r *DomainRegistry) GetActive(id string) (domain.Domain, bool) {
	d, ok := r.domains[id]
	if !ok || !d.Active {
		return domain.Domain{}, false
	}
	return d, true
}

// All returns every domain, sorted by id for deterministic iteration.
func (r *DomainRegistry) All() []domain.Domain {
	out := make([]domain.Domain, 0, len(r.domains))
	for _, d := range r.domains {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CollectionName derives the vector collection name for a domain:
// <prefix>_<domainId>_<env>. A per-domain prefix override wins over the
// registry default.
func (r *DomainRegistry) CollectionName(domainID string) string {
	prefix := r.prefix
	if d, ok := r.domains[domainID]; ok && d.CollectionPrefix != "" {
		prefix = d.CollectionPrefix
	}
	return strings.ToLower(prefix + "_" + domainID + "_" + r.env)
}

// MaxResults returns the per-environment result cap for a domain, falling
// back to the given default when unset.
func (r *DomainRegistry) MaxResults(domainID string, fallback int) int {
	d, ok := r.domains[domainID]
	if !ok {
		return fallback
	}
	if n, exists := d.MaxResults[r.env]; exists && n > 0 {
		return n
	}
	return fallback
}
