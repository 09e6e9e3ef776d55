// Package discover produces candidate article URLs for a site through a
// cascade of strategies: focused spider, sitemap enumeration, category
// page extraction and a homepage fallback. The first strategy yielding
// candidates that survive the relevance filter wins.
package discover

import (
	"context"
	"net/url"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/linkutil"
	"github.com/newsloom/newsloom/internal/logger"
)

// Candidate is one raw URL produced by a strategy before filtering.
type Candidate struct {
	URL       string
	ParentURL string
	Depth     int
}

// Strategy produces candidate URLs for a site. Strategies fail
// independently; the cascade degrades to the next one.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, site *domain.Site) ([]Candidate, error)
}

// Discoverer runs the strategy cascade and applies the relevance filter.
// The seen set is per instance; create one Discoverer per site crawl.
type Discoverer struct {
	strategies []Strategy
	logger     logger.Interface
	seen       map[string]struct{}
}

// New creates a discoverer over the given strategy cascade.
func New(log logger.Interface, strategies ...Strategy) *Discoverer {
	return &Discoverer{
		strategies: strategies,
		logger:     log,
		seen:       make(map[string]struct{}),
	}
}

// Discover runs the cascade for one site. keywords are the site's domain
// keywords used for path relevance. Returns up to maxLinks links ready for
// batch insertion, or an empty slice when every strategy came up empty.
func (d *Discoverer) Discover(
	ctx context.Context,
	site *domain.Site,
	keywords []string,
	maxLinks int,
) ([]*domain.DiscoveredLink, error) {
	if maxLinks <= 0 {
		maxLinks = 100
	}

	for _, strategy := range d.strategies {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		candidates, err := strategy.Discover(ctx, site)
		if err != nil {
			d.logger.Warn("discovery strategy failed",
				"strategy", strategy.Name(), "site", site.ID, "error", err)
			continue
		}

		links := d.filter(site, candidates, keywords, maxLinks)
		if len(links) > 0 {
			d.logger.Info("discovery strategy produced links",
				"strategy", strategy.Name(), "site", site.ID,
				"candidates", len(candidates), "kept", len(links))
			return links, nil
		}
	}

	d.logger.Warn("no strategy produced links", "site", site.ID)
	return []*domain.DiscoveredLink{}, nil
}

// filter applies the relevance rules: same host as the site, no negative
// patterns, score at or above the threshold, not seen before.
func (d *Discoverer) filter(
	site *domain.Site,
	candidates []Candidate,
	keywords []string,
	maxLinks int,
) []*domain.DiscoveredLink {
	links := make([]*domain.DiscoveredLink, 0, len(candidates))

	for _, cand := range candidates {
		if len(links) >= maxLinks {
			break
		}

		normalized, err := linkutil.Normalize(cand.URL)
		if err != nil {
			continue
		}
		if !linkutil.SameHost(site.BaseURL, normalized) {
			continue
		}

		parsed, err := url.Parse(normalized)
		if err != nil {
			continue
		}
		if isNegative(parsed) {
			continue
		}
		if score(parsed, keywords) < minKeepScore {
			continue
		}

		hash, err := linkutil.Hash(normalized)
		if err != nil {
			continue
		}
		if _, dup := d.seen[hash]; dup {
			continue
		}
		d.seen[hash] = struct{}{}

		link := &domain.DiscoveredLink{
			SiteID:  site.ID,
			URL:     normalized,
			URLHash: hash,
			Depth:   cand.Depth,
			State:   domain.LinkStateNew,
		}
		if cand.ParentURL != "" {
			parent := cand.ParentURL
			link.ParentURL = &parent
		}

		links = append(links, link)
	}

	return links
}
