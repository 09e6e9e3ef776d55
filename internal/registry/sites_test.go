package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/registry"
)

const sitesYAML = `sites:
  alpha-news:
    name: Alpha News
    base_url: https://alpha.example.com
    domain: football
    active: true
    priority: 10
    discovery_pages:
      latest:
        url: https://alpha.example.com/latest
        active: true
        max_links: 50
  beta-sport:
    name: Beta Sport
    base_url: https://beta.example.com
    domain: football
    active: false
    priority: 20
  gamma-tech:
    name: Gamma Tech
    base_url: https://gamma.example.com
    domain: tech
    active: true
    priority: 5

domain_mapping:
  football:
    - alpha-news
    - beta-sport
`

func loadTestSites(t *testing.T) *registry.SiteRegistry {
	t.Helper()

	path := writeTempFile(t, "sites.yml", sitesYAML)
	reg, err := registry.LoadSites(path)
	require.NoError(t, err)

	return reg
}

func TestLoadSites(t *testing.T) {
	t.Parallel()

	reg := loadTestSites(t)

	s, ok := reg.Get("alpha-news")
	require.True(t, ok)
	assert.Equal(t, "alpha-news", s.ID)
	assert.Equal(t, "https://alpha.example.com", s.BaseURL)
	assert.Equal(t, "football", s.DomainID)

	page, ok := s.DiscoveryPages["latest"]
	require.True(t, ok)
	assert.Equal(t, "https://alpha.example.com/latest", page.URL)
	assert.True(t, page.Active)
	assert.Equal(t, 50, page.MaxLinks)
}

func TestActiveByDomainUsesMapping(t *testing.T) {
	t.Parallel()

	reg := loadTestSites(t)

	// beta-sport is mapped but inactive, so only alpha-news survives.
	sites := reg.ActiveByDomain("football")
	require.Len(t, sites, 1)
	assert.Equal(t, "alpha-news", sites[0].ID)
}

func TestActiveByDomainFallsBackToSiteField(t *testing.T) {
	t.Parallel()

	reg := loadTestSites(t)

	// tech has no domain_mapping entry; the site's own domain field applies.
	sites := reg.ActiveByDomain("tech")
	require.Len(t, sites, 1)
	assert.Equal(t, "gamma-tech", sites[0].ID)
}

func TestActiveByDomainUnknownDomain(t *testing.T) {
	t.Parallel()

	reg := loadTestSites(t)
	assert.Empty(t, reg.ActiveByDomain("rugby"))
}

func TestActiveSortsByPriority(t *testing.T) {
	t.Parallel()

	reg := registry.NewSiteRegistry([]domain.Site{
		{ID: "low", DomainID: "d", Active: true, Priority: 1},
		{ID: "high", DomainID: "d", Active: true, Priority: 10},
		{ID: "off", DomainID: "d", Active: false, Priority: 99},
		{ID: "also-high", DomainID: "d", Active: true, Priority: 10},
	})

	sites := reg.Active()
	require.Len(t, sites, 3)
	assert.Equal(t, "also-high", sites[0].ID)
	assert.Equal(t, "high", sites[1].ID)
	assert.Equal(t, "low", sites[2].ID)
}

func TestAllSitesSortedByID(t *testing.T) {
	t.Parallel()

	reg := loadTestSites(t)

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha-news", all[0].ID)
	assert.Equal(t, "beta-sport", all[1].ID)
	assert.Equal(t, "gamma-tech", all[2].ID)
}
