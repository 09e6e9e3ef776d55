package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/pacer"
)

// CategoryPages extracts anchors from the site's configured discovery
// pages. Each page fetch is paced and may fail independently.
type CategoryPages struct {
	fetcher *pacer.Fetcher
	logger  logger.Interface
}

// NewCategoryPages creates the category page strategy.
func NewCategoryPages(fetcher *pacer.Fetcher, log logger.Interface) *CategoryPages {
	return &CategoryPages{fetcher: fetcher, logger: log}
}

// Name identifies the strategy in logs.
func (c *CategoryPages) Name() string { return "category-pages" }

// Discover fetches every active discovery page and collects its anchors.
// Pages are visited in name order so runs are deterministic.
func (c *CategoryPages) Discover(ctx context.Context, site *domain.Site) ([]Candidate, error) {
	names := make([]string, 0, len(site.DiscoveryPages))
	for name, page := range site.DiscoveryPages {
		if page.Active {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var candidates []Candidate
	for _, name := range names {
		page := site.DiscoveryPages[name]
		found, err := extractAnchors(ctx, c.fetcher, page.URL, page.MaxLinks)
		if err != nil {
			c.logger.Debug("category page fetch failed",
				"site", site.ID, "page", page.URL, "error", err)
			continue
		}
		candidates = append(candidates, found...)
	}

	return candidates, nil
}

// Homepage is the last-resort strategy: extract anchors from the base URL.
type Homepage struct {
	fetcher  *pacer.Fetcher
	maxLinks int
	logger   logger.Interface
}

// NewHomepage creates the homepage fallback strategy.
func NewHomepage(fetcher *pacer.Fetcher, maxLinks int, log logger.Interface) *Homepage {
	if maxLinks <= 0 {
		maxLinks = 200
	}
	return &Homepage{fetcher: fetcher, maxLinks: maxLinks, logger: log}
}

// Name identifies the strategy in logs.
func (h *Homepage) Name() string { return "homepage" }

// Discover extracts anchors from the site's base URL.
func (h *Homepage) Discover(ctx context.Context, site *domain.Site) ([]Candidate, error) {
	return extractAnchors(ctx, h.fetcher, site.BaseURL, h.maxLinks)
}

// extractAnchors fetches one page and returns its anchor targets resolved
// against the page URL.
func extractAnchors(ctx context.Context, fetcher *pacer.Fetcher, pageURL string, maxLinks int) ([]Candidate, error) {
	if maxLinks <= 0 {
		maxLinks = 200
	}

	res, err := fetcher.Fetch(ctx, pageURL, "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	base, err := url.Parse(res.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %s: %w", res.FinalURL, err)
	}

	var candidates []Candidate
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}

		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			return true
		}

		candidates = append(candidates, Candidate{
			URL:       base.ResolveReference(ref).String(),
			ParentURL: pageURL,
			Depth:     1,
		})
		return len(candidates) < maxLinks
	})

	return candidates, nil
}
