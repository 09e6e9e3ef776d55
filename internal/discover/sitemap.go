package discover

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/linkutil"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/pacer"
)

// wellKnownSitemaps are probed when robots.txt advertises no sitemap.
var wellKnownSitemaps = []string{"/sitemap.xml", "/sitemap_index.xml"}

// maxChildSitemaps bounds how many child sitemaps of an index are followed.
const maxChildSitemaps = 5

// SitemapSource exposes the sitemap URLs advertised in a host's robots.txt.
type SitemapSource interface {
	SitemapURLs(ctx context.Context, host string) ([]string, error)
}

// Sitemap enumerates article URLs from the site's sitemaps. Robots-advertised
// sitemaps are tried first, then the well-known locations.
type Sitemap struct {
	fetcher *pacer.Fetcher
	robots  SitemapSource
	maxURLs int
	logger  logger.Interface
}

// NewSitemap creates the sitemap strategy.
func NewSitemap(fetcher *pacer.Fetcher, robots SitemapSource, maxURLs int, log logger.Interface) *Sitemap {
	if maxURLs <= 0 {
		maxURLs = 500
	}
	return &Sitemap{fetcher: fetcher, robots: robots, maxURLs: maxURLs, logger: log}
}

// Name identifies the strategy in logs.
func (s *Sitemap) Name() string { return "sitemap" }

// sitemapDoc covers both <urlset> and <sitemapindex> documents; only the
// matching element list is populated.
type sitemapDoc struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// Discover enumerates sitemap URL entries for the site.
func (s *Sitemap) Discover(ctx context.Context, site *domain.Site) ([]Candidate, error) {
	host, err := linkutil.Host(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("sitemap: %w", err)
	}

	sitemapURLs, err := s.robots.SitemapURLs(ctx, host)
	if err != nil {
		s.logger.Debug("robots sitemap lookup failed", "host", host, "error", err)
	}

	if len(sitemapURLs) == 0 {
		base := strings.TrimRight(site.BaseURL, "/")
		for _, path := range wellKnownSitemaps {
			sitemapURLs = append(sitemapURLs, base+path)
		}
	}

	var candidates []Candidate
	for _, sitemapURL := range sitemapURLs {
		if len(candidates) >= s.maxURLs {
			break
		}
		found, fetchErr := s.enumerate(ctx, sitemapURL, s.maxURLs-len(candidates))
		if fetchErr != nil {
			s.logger.Debug("sitemap fetch failed", "url", sitemapURL, "error", fetchErr)
			continue
		}
		candidates = append(candidates, found...)
	}

	return candidates, nil
}

// enumerate fetches one sitemap document. A sitemap index recurses one
// level into its first few child sitemaps.
func (s *Sitemap) enumerate(ctx context.Context, sitemapURL string, limit int) ([]Candidate, error) {
	res, err := s.fetcher.Fetch(ctx, sitemapURL, "")
	if err != nil {
		return nil, err
	}

	var doc sitemapDoc
	if unmarshalErr := xml.Unmarshal(res.Body, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("parse sitemap: %w", unmarshalErr)
	}

	if len(doc.URLs) > 0 {
		candidates := make([]Candidate, 0, len(doc.URLs))
		for _, entry := range doc.URLs {
			if len(candidates) >= limit {
				break
			}
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" {
				continue
			}
			candidates = append(candidates, Candidate{URL: loc, ParentURL: sitemapURL, Depth: 1})
		}
		return candidates, nil
	}

	var candidates []Candidate
	children := doc.Sitemaps
	if len(children) > maxChildSitemaps {
		children = children[:maxChildSitemaps]
	}
	for _, child := range children {
		if len(candidates) >= limit {
			break
		}
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		found, childErr := s.enumerate(ctx, loc, limit-len(candidates))
		if childErr != nil {
			s.logger.Debug("child sitemap fetch failed", "url", loc, "error", childErr)
			continue
		}
		candidates = append(candidates, found...)
	}

	return candidates, nil
}
