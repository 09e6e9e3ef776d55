package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/registry"
)

const domainsYAML = `domains:
  football:
    name: Football
    description: Club and international football
    active: true
    keywords:
      - football
      - transfer
    max_results:
      dev: 10
      prod: 25
  chess:
    name: Chess
    active: false
    keywords:
      - chess
  finance:
    name: Finance
    active: true
    vector_collection_prefix: moneyfeed
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func loadTestDomains(t *testing.T, env string) *registry.DomainRegistry {
	t.Helper()

	path := writeTempFile(t, "domains.yml", domainsYAML)
	reg, err := registry.LoadDomains(path, "newsloom", env)
	require.NoError(t, err)

	return reg
}

func TestLoadDomains(t *testing.T) {
	t.Parallel()

	reg := loadTestDomains(t, "dev")

	d, ok := reg.Get("football")
	require.True(t, ok)
	assert.Equal(t, "football", d.ID)
	assert.Equal(t, "Football", d.Name)
	assert.True(t, d.Active)
	assert.Equal(t, []string{"football", "transfer"}, d.Keywords)

	_, ok = reg.Get("rugby")
	assert.False(t, ok)
}

func TestLoadDomainsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadDomains(filepath.Join(t.TempDir(), "absent.yml"), "newsloom", "dev")
	assert.Error(t, err)
}

func TestLoadDomainsEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "domains.yml", "domains: {}\n")
	_, err := registry.LoadDomains(path, "newsloom", "dev")
	assert.Error(t, err)
}

func TestGetActive(t *testing.T) {
	t.Parallel()

	reg := loadTestDomains(t, "dev")

	_, ok := reg.GetActive("football")
	assert.True(t, ok)

	_, ok = reg.GetActive("chess")
	assert.False(t, ok)

	_, ok = reg.GetActive("rugby")
	assert.False(t, ok)
}

func TestAllSortedByID(t *testing.T) {
	t.Parallel()

	reg := loadTestDomains(t, "dev")

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "chess", all[0].ID)
	assert.Equal(t, "finance", all[1].ID)
	assert.Equal(t, "football", all[2].ID)
}

func TestCollectionName(t *testing.T) {
	t.Parallel()

	reg := loadTestDomains(t, "Prod")

	assert.Equal(t, "newsloom_football_prod", reg.CollectionName("football"))
	assert.Equal(t, "moneyfeed_finance_prod", reg.CollectionName("finance"))

	// Unknown domains still produce a deterministic name from the default
	// prefix.
	assert.Equal(t, "newsloom_rugby_prod", reg.CollectionName("rugby"))
}

func TestMaxResults(t *testing.T) {
	t.Parallel()

	dev := loadTestDomains(t, "dev")
	assert.Equal(t, 10, dev.MaxResults("football", 50))

	prod := loadTestDomains(t, "prod")
	assert.Equal(t, 25, prod.MaxResults("football", 50))

	// No per-env cap configured.
	assert.Equal(t, 50, prod.MaxResults("finance", 50))
	assert.Equal(t, 50, prod.MaxResults("rugby", 50))
}

func TestNewDomainRegistry(t *testing.T) {
	t.Parallel()

	reg := registry.NewDomainRegistry([]domain.Domain{
		{ID: "tech", Name: "Technology", Active: true},
	}, "newsloom", "dev")

	d, ok := reg.GetActive("tech")
	require.True(t, ok)
	assert.Equal(t, "Technology", d.Name)
	assert.Equal(t, "newsloom_tech_dev", reg.CollectionName("tech"))
}
