// Package orchestrate drives the crawl pipeline for sites and domains:
// ensure site, discover, persist links, select crawlable links, extract,
// coordinate the dual write and roll up stats.
package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/coordinator"
	"github.com/newsloom/newsloom/internal/discover"
	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/extract"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/registry"
)

// maxBatchSize caps the per-batch extraction concurrency.
const maxBatchSize = 5

// Config tunes the orchestrator.
type Config struct {
	MaxPerSite    int
	BatchSize     int
	MaxConcurrent int
	BatchDelay    time.Duration
	RefreshAfter  time.Duration
	MaxFailures   int
	ObsoleteDays  int
}

// DiscovererFactory builds a fresh discoverer per site crawl so the seen
// set is never shared across goroutines.
type DiscovererFactory func() *discover.Discoverer

// Orchestrator runs crawl passes over the registered sites.
type Orchestrator struct {
	cfg           Config
	domains       *registry.DomainRegistry
	siteRegistry  *registry.SiteRegistry
	sites         *linkstore.SiteRepository
	links         *linkstore.LinkRepository
	attempts      *linkstore.AttemptRepository
	stats         *linkstore.StatsRepository
	extractor     *extract.Extractor
	coordinator   *coordinator.Coordinator
	newDiscoverer DiscovererFactory
	metrics       *metrics.Metrics
	logger        logger.Interface
}

// New creates an orchestrator.
func New(
	cfg Config,
	domains *registry.DomainRegistry,
	siteRegistry *registry.SiteRegistry,
	sites *linkstore.SiteRepository,
	links *linkstore.LinkRepository,
	attempts *linkstore.AttemptRepository,
	stats *linkstore.StatsRepository,
	extractor *extract.Extractor,
	coord *coordinator.Coordinator,
	newDiscoverer DiscovererFactory,
	m *metrics.Metrics,
	log logger.Interface,
) *Orchestrator {
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = maxBatchSize
	}
	if cfg.MaxConcurrent > 0 && cfg.BatchSize > cfg.MaxConcurrent {
		cfg.BatchSize = cfg.MaxConcurrent
	}
	if cfg.MaxPerSite <= 0 {
		cfg.MaxPerSite = 25
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}

	return &Orchestrator{
		cfg:           cfg,
		domains:       domains,
		siteRegistry:  siteRegistry,
		sites:         sites,
		links:         links,
		attempts:      attempts,
		stats:         stats,
		extractor:     extractor,
		coordinator:   coord,
		newDiscoverer: newDiscoverer,
		metrics:       m,
		logger:        log,
	}
}

// RecoverStale sweeps links stranded in CRAWLING back to NEW. Called once
// at startup before any crawl runs.
func (o *Orchestrator) RecoverStale(ctx context.Context) (int, error) {
	recovered, err := o.links.RecoverStale(ctx)
	if err != nil {
		return 0, err
	}
	if recovered > 0 {
		o.logger.Warn("recovered stranded links", "count", recovered)
	}
	return recovered, nil
}

// CrawlDomain crawls every active site assigned to one domain.
func (o *Orchestrator) CrawlDomain(ctx context.Context, domainID string) (*domain.RunResult, error) {
	dom, ok := o.domains.GetActive(domainID)
	if !ok {
		return nil, domain.NewPipelineError(domain.ErrKindConfig,
			fmt.Sprintf("domain %s missing or inactive", domainID), nil)
	}

	runID := uuid.New().String()
	result := &domain.RunResult{}

	for _, site := range o.siteRegistry.ActiveByDomain(domainID) {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		stats := o.crawlSite(ctx, runID, dom, site)
		accumulate(result, stats)
	}

	o.logger.Info("domain crawl finished",
		"domain", domainID, "run_id", runID,
		"sites", result.SitesProcessed, "discovered", result.LinksDiscovered,
		"crawled", result.LinksCrawled, "articles", result.ArticlesExtracted,
		"errors", result.Errors)

	return result, nil
}

// CrawlAll crawls every active domain.
func (o *Orchestrator) CrawlAll(ctx context.Context) (*domain.RunResult, error) {
	result := &domain.RunResult{}

	for _, dom := range o.domains.All() {
		if !dom.Active {
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		domainResult, err := o.CrawlDomain(ctx, dom.ID)
		if domainResult != nil {
			result.Add(*domainResult)
		}
		if err != nil {
			o.logger.Error("domain crawl failed", "domain", dom.ID, "error", err)
			result.Errors++
		}
	}

	return result, nil
}

// CrawlSite crawls one site by id, resolving its domain first.
func (o *Orchestrator) CrawlSite(ctx context.Context, siteID string) (*domain.RunResult, error) {
	site, ok := o.siteRegistry.Get(siteID)
	if !ok {
		return nil, domain.NewPipelineError(domain.ErrKindConfig,
			fmt.Sprintf("site %s not registered", siteID), nil)
	}
	if !site.Active {
		return nil, domain.NewPipelineError(domain.ErrKindConfig,
			fmt.Sprintf("site %s is inactive", siteID), nil)
	}

	dom, ok := o.domains.GetActive(site.DomainID)
	if !ok {
		return nil, domain.NewPipelineError(domain.ErrKindConfig,
			fmt.Sprintf("domain %s missing or inactive", site.DomainID), nil)
	}

	result := &domain.RunResult{}
	accumulate(result, o.crawlSite(ctx, uuid.New().String(), dom, site))
	return result, nil
}

// Cleanup marks stale links obsolete and prunes old attempt history.
func (o *Orchestrator) Cleanup(ctx context.Context, daysOld int) (obsolete, pruned int, err error) {
	if daysOld <= 0 {
		daysOld = o.cfg.ObsoleteDays
	}
	if daysOld <= 0 {
		daysOld = 30
	}

	obsolete, err = o.links.MarkObsolete(ctx, daysOld)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup: %w", err)
	}

	pruned, err = o.attempts.PruneOlderThan(ctx, daysOld)
	if err != nil {
		return obsolete, 0, fmt.Errorf("cleanup: %w", err)
	}

	o.logger.Info("cleanup finished", "obsolete_links", obsolete, "pruned_attempts", pruned)
	return obsolete, pruned, nil
}

// accumulate folds one site's stats into a run result.
func accumulate(result *domain.RunResult, stats *domain.CrawlStats) {
	if stats == nil {
		return
	}
	result.SitesProcessed++
	result.LinksDiscovered += stats.LinksDiscovered
	result.LinksCrawled += stats.LinksCrawled
	result.ArticlesExtracted += stats.ArticlesExtracted
	result.Errors += stats.Errors
}
