// Package search resolves a natural-language question into a ranked list
// of stored articles, enriched with link-store metadata.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/embed"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/registry"
	"github.com/newsloom/newsloom/internal/vector"
)

// defaultLimit caps results when neither the caller nor the domain
// configuration supplies one.
const defaultLimit = 10

// Options narrows a retrieval query.
type Options struct {
	DomainID   string
	Limit      int
	MinQuality float64
	From       *time.Time
	To         *time.Time
}

// Retriever answers questions against the vector store.
type Retriever struct {
	embedder embed.Provider
	vectors  *vector.Store
	links    *linkstore.LinkRepository
	sites    *linkstore.SiteRepository
	articles *linkstore.ArticleRepository
	domains  *registry.DomainRegistry
	logger   logger.Interface
}

// New creates a retriever.
func New(
	embedder embed.Provider,
	vectors *vector.Store,
	links *linkstore.LinkRepository,
	sites *linkstore.SiteRepository,
	articles *linkstore.ArticleRepository,
	domains *registry.DomainRegistry,
	log logger.Interface,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		links:    links,
		sites:    sites,
		articles: articles,
		domains:  domains,
		logger:   log,
	}
}

// Search embeds the question with the same provider used at ingest and
// returns the nearest articles, similarity descending with published date
// breaking ties. The optional time range is applied after the vector query.
func (r *Retriever) Search(ctx context.Context, question string, opts Options) ([]domain.ArticleHit, error) {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("search: embed question: %w", err)
	}

	domainIDs, err := r.resolveDomains(opts.DomainID)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = r.domains.MaxResults(opts.DomainID, defaultLimit)
	}

	var hits []domain.ArticleHit
	for _, domainID := range domainIDs {
		collection := r.domains.CollectionName(domainID)

		scored, searchErr := r.vectors.KNNSearch(ctx, collection, embedding, vector.SearchOptions{
			Limit:      limit,
			MinQuality: opts.MinQuality,
			DomainID:   domainID,
		})
		if searchErr != nil {
			r.logger.Warn("collection query failed",
				"collection", collection, "error", searchErr)
			continue
		}

		for _, sv := range scored {
			hit := domain.ArticleHit{Vector: sv.Vector, Similarity: sv.Similarity}
			if !inTimeRange(hit.Vector.PublishedDate, opts.From, opts.To) {
				continue
			}
			r.enrich(ctx, &hit)
			hits = append(hits, hit)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return laterDate(hits[i].Vector.PublishedDate, hits[j].Vector.PublishedDate)
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

// resolveDomains returns the domains to query: the requested one when
// given, otherwise every active domain.
func (r *Retriever) resolveDomains(domainID string) ([]string, error) {
	if domainID != "" {
		if _, ok := r.domains.GetActive(domainID); !ok {
			return nil, fmt.Errorf("search: domain %s missing or inactive", domainID)
		}
		return []string{domainID}, nil
	}

	var ids []string
	for _, d := range r.domains.All() {
		if d.Active {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// enrich attaches link-store fields to a hit. Enrichment failures degrade
// to the bare vector fields.
func (r *Retriever) enrich(ctx context.Context, hit *domain.ArticleHit) {
	hit.SiteName = hit.Vector.SiteName

	if hit.Vector.LinkID == "" {
		return
	}

	link, err := r.links.GetByID(ctx, hit.Vector.LinkID)
	if err != nil {
		return
	}

	discovered := link.DiscoveredAt
	hit.DiscoveredAt = &discovered
	hit.LastCrawled = link.LastCrawledAt

	if site, siteErr := r.sites.GetByID(ctx, link.SiteID); siteErr == nil {
		hit.SiteName = site.Name
	}

	if article, artErr := r.articles.GetByLinkID(ctx, link.ID); artErr == nil {
		if pageType, ok := article.Metadata["page_type"].(string); ok {
			hit.PageType = pageType
		}
	}
}

func inTimeRange(at, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if at == nil {
		return false
	}
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}

// laterDate reports whether a sorts before b when later dates rank first.
// Articles without a date rank last.
func laterDate(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
