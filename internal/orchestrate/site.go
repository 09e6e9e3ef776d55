package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/newsloom/newsloom/internal/domain"
)

// crawlSite runs the full pipeline for one site. Failures along the way
// are counted, never fatal: a site yielding nothing is a warning.
func (o *Orchestrator) crawlSite(
	ctx context.Context,
	runID string,
	dom domain.Domain,
	site domain.Site,
) *domain.CrawlStats {
	stats := &domain.CrawlStats{
		RunID:    runID,
		SiteID:   site.ID,
		DomainID: dom.ID,
	}

	if err := o.ensureSite(ctx, dom, site); err != nil {
		o.logger.Error("site upsert failed", "site", site.ID, "error", err)
		stats.Errors++
		o.recordStats(ctx, stats)
		return stats
	}

	discoverer := o.newDiscoverer()
	candidates, err := discoverer.Discover(ctx, &site, dom.Keywords, o.cfg.MaxPerSite*4)
	if err != nil {
		o.logger.Error("discovery failed", "site", site.ID, "error", err)
		stats.Errors++
	}

	if len(candidates) > 0 {
		created, insertErr := o.links.CreateBatch(ctx, candidates)
		if insertErr != nil {
			o.logger.Error("link batch insert failed", "site", site.ID, "error", insertErr)
			stats.Errors++
		} else {
			stats.LinksDiscovered = created
			o.metrics.LinksDiscoveredTotal.WithLabelValues(site.ID, "cascade").Add(float64(created))
		}
	}

	crawlable, err := o.links.SelectCrawlable(ctx, site.ID,
		o.cfg.MaxPerSite, o.cfg.RefreshAfter, o.cfg.MaxFailures)
	if err != nil {
		o.logger.Error("crawlable selection failed", "site", site.ID, "error", err)
		stats.Errors++
		o.recordStats(ctx, stats)
		return stats
	}

	o.crawlBatches(ctx, dom, site, crawlable, stats)
	o.recordStats(ctx, stats)
	return stats
}

// ensureSite upserts the site row, refreshing its configuration blob.
func (o *Orchestrator) ensureSite(ctx context.Context, dom domain.Domain, site domain.Site) error {
	pages := make(map[string]any, len(site.DiscoveryPages))
	for name, page := range site.DiscoveryPages {
		pages[name] = map[string]any{
			"url":       page.URL,
			"active":    page.Active,
			"max_links": page.MaxLinks,
		}
	}

	record := &domain.SiteRecord{
		ID:       site.ID,
		Name:     site.Name,
		BaseURL:  site.BaseURL,
		DomainID: dom.ID,
		Active:   site.Active,
		ConfigBlob: domain.JSONBMap{
			"priority":        site.Priority,
			"language":        site.Language,
			"discovery_pages": pages,
		},
	}

	return o.sites.Upsert(ctx, record)
}

// crawlBatches processes crawlable links in bounded concurrent batches
// with a pause between batches.
func (o *Orchestrator) crawlBatches(
	ctx context.Context,
	dom domain.Domain,
	site domain.Site,
	links []*domain.DiscoveredLink,
	stats *domain.CrawlStats,
) {
	var mu sync.Mutex

	for start := 0; start < len(links); start += o.cfg.BatchSize {
		if ctx.Err() != nil {
			return
		}

		end := start + o.cfg.BatchSize
		if end > len(links) {
			end = len(links)
		}

		var wg sync.WaitGroup
		for _, link := range links[start:end] {
			wg.Add(1)
			go func(link *domain.DiscoveredLink) {
				defer wg.Done()
				crawled, extracted, failed := o.processLink(ctx, dom, site, link)

				mu.Lock()
				if crawled {
					stats.LinksCrawled++
				}
				if extracted {
					stats.ArticlesExtracted++
				}
				if failed {
					stats.Errors++
				}
				mu.Unlock()
			}(link)
		}
		wg.Wait()

		if end < len(links) && o.cfg.BatchDelay > 0 {
			select {
			case <-time.After(o.cfg.BatchDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// processLink claims one link and runs it through extraction and the dual
// write. Reports whether the link was crawled at all, whether an article
// came out, and whether the attempt failed.
func (o *Orchestrator) processLink(
	ctx context.Context,
	dom domain.Domain,
	site domain.Site,
	link *domain.DiscoveredLink,
) (crawled, extracted, failed bool) {
	claimed, err := o.links.Claim(ctx, link.ID)
	if err != nil {
		o.logger.Error("link claim failed", "link_id", link.ID, "error", err)
		return false, false, true
	}
	if !claimed {
		// Another worker holds the link.
		return false, false, false
	}

	result, err := o.extractor.Extract(ctx, link.URL, &dom, &site)
	if err != nil {
		o.failLink(ctx, site.ID, link.ID, err, 0, 0)
		return true, false, true
	}

	if _, storeErr := o.coordinator.Store(ctx, link.ID, result.Article); storeErr != nil {
		o.failLink(ctx, site.ID, link.ID, storeErr, result.ResponseTime, result.ContentLength)
		return true, false, true
	}

	o.recordAttempt(ctx, link.ID, true, result.ResponseTime, result.ContentLength, nil)
	o.metrics.LinksCrawledTotal.WithLabelValues(site.ID, "success").Inc()
	o.metrics.ArticlesStoredTotal.WithLabelValues(dom.ID).Inc()
	o.metrics.FetchDurationSeconds.WithLabelValues(site.ID).Observe(result.ResponseTime.Seconds())

	return true, true, false
}

// failLink transitions a claimed link to FAILED and records the attempt.
// Politeness, relevance and duplicate rejections never count toward the
// BLOCKED promotion.
func (o *Orchestrator) failLink(
	ctx context.Context,
	siteID, linkID string,
	cause error,
	responseTime time.Duration,
	contentLength int,
) {
	kind := domain.KindOf(cause)

	if err := o.links.MarkFailed(ctx, linkID, kind.CountsTowardBlocked(), o.cfg.MaxFailures); err != nil {
		o.logger.Error("link fail transition failed", "link_id", linkID, "error", err)
	}

	message := cause.Error()
	o.recordAttempt(ctx, linkID, false, responseTime, contentLength, &message)

	o.metrics.LinksCrawledTotal.WithLabelValues(siteID, "failure").Inc()
	o.metrics.ExtractionsTotal.WithLabelValues(string(kind)).Inc()

	o.logger.Debug("link crawl failed", "link_id", linkID, "kind", string(kind), "error", cause)
}

// recordAttempt appends one row to the attempt history.
func (o *Orchestrator) recordAttempt(
	ctx context.Context,
	linkID string,
	success bool,
	responseTime time.Duration,
	contentLength int,
	errorMessage *string,
) {
	attempt := &domain.CrawlAttempt{
		LinkID:        linkID,
		Success:       success,
		ResponseTime:  responseTime.Milliseconds(),
		ContentLength: contentLength,
		ErrorMessage:  errorMessage,
	}
	if err := o.attempts.Create(ctx, attempt); err != nil {
		o.logger.Error("attempt record failed", "link_id", linkID, "error", err)
	}
}

// recordStats persists the per-site rollup.
func (o *Orchestrator) recordStats(ctx context.Context, stats *domain.CrawlStats) {
	if err := o.stats.Create(ctx, stats); err != nil {
		o.logger.Error("stats record failed", "site", stats.SiteID, "error", err)
	}
}
