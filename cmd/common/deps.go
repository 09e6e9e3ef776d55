// Package common wires the shared dependency graph for the commands.
package common

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/newsloom/newsloom/internal/config"
	"github.com/newsloom/newsloom/internal/coordinator"
	"github.com/newsloom/newsloom/internal/discover"
	"github.com/newsloom/newsloom/internal/embed"
	"github.com/newsloom/newsloom/internal/extract"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/orchestrate"
	"github.com/newsloom/newsloom/internal/pacer"
	"github.com/newsloom/newsloom/internal/registry"
	"github.com/newsloom/newsloom/internal/search"
	"github.com/newsloom/newsloom/internal/vector"
)

// Deps is the assembled dependency graph shared by all commands.
type Deps struct {
	Config   *config.Config
	Logger   logger.Interface
	DB       *sqlx.DB
	Metrics  *metrics.Metrics
	Pacer    *pacer.Pacer
	Fetcher  *pacer.Fetcher
	Embedder embed.Provider

	Domains      *registry.DomainRegistry
	SiteRegistry *registry.SiteRegistry

	Links    *linkstore.LinkRepository
	Sites    *linkstore.SiteRepository
	Attempts *linkstore.AttemptRepository
	Articles *linkstore.ArticleRepository
	Stats    *linkstore.StatsRepository

	Vectors      *vector.Store
	Orchestrator *orchestrate.Orchestrator
	Reconciler   *coordinator.Reconciler
	Retriever    *search.Retriever
}

// Build loads configuration and assembles the full graph. Callers must
// Close the result.
func Build(ctx context.Context, cfgFile, env string) (*Deps, error) {
	cfg, err := config.Load(cfgFile, env)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := linkstore.Connect(linkstore.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, err
	}

	if schemaErr := linkstore.EnsureSchema(ctx, db); schemaErr != nil {
		db.Close()
		return nil, schemaErr
	}

	domains, err := registry.LoadDomains(
		cfg.Registry.DomainsFile, cfg.Vector.CollectionPrefix, cfg.Env)
	if err != nil {
		db.Close()
		return nil, err
	}

	siteRegistry, err := registry.LoadSites(cfg.Registry.SitesFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	esClient, err := vector.NewClient(vector.Config{
		Addresses:  cfg.Vector.Addresses,
		Username:   cfg.Vector.Username,
		Password:   cfg.Vector.Password,
		APIKey:     cfg.Vector.APIKey,
		Dimensions: cfg.Vector.Dimensions,
	}, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	embedder, err := embed.NewHTTPProvider(embed.Config{
		Endpoint: cfg.Embed.Endpoint,
		Model:    cfg.Embed.Model,
		APIKey:   cfg.Embed.APIKey,
		Timeout:  cfg.Embed.Timeout,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Crawler.RequestTimeout}
	m := metrics.New(nil)

	overrides := make(map[string]pacer.HostOverride, len(cfg.Crawler.HostOverrides))
	for host, ov := range cfg.Crawler.HostOverrides {
		overrides[host] = pacer.HostOverride{
			RequestsPerSecond: ov.RequestsPerSecond,
			MaxConcurrent:     ov.MaxConcurrent,
		}
	}

	p := pacer.New(pacer.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
		MaxConcurrent:     cfg.Crawler.MaxConcurrent,
		BackoffFactor:     cfg.Crawler.BackoffFactor,
		BackoffCeiling:    cfg.Crawler.BackoffCeiling,
		RobotsTTL:         cfg.Crawler.RobotsTTL,
		RobotsFailureTTL:  cfg.Crawler.RobotsFailureTTL,
		Overrides:         overrides,
	}, httpClient, m, log)

	fetcher := pacer.NewFetcher(p, httpClient, cfg.Crawler.UserAgent)

	links := linkstore.NewLinkRepository(db)
	sites := linkstore.NewSiteRepository(db)
	attempts := linkstore.NewAttemptRepository(db)
	articles := linkstore.NewArticleRepository(db)
	stats := linkstore.NewStatsRepository(db)

	vectors := vector.NewStore(esClient, cfg.Vector.Dimensions, log)

	extractor := extract.New(fetcher, log)
	coord := coordinator.New(links, articles, vectors, embedder, domains, m, log)

	newDiscoverer := func() *discover.Discoverer {
		return discover.New(log,
			discover.NewSpider(discover.SpiderConfig{
				UserAgent:  cfg.Crawler.UserAgent,
				MaxDepth:   cfg.Crawler.SpiderMaxDepth,
				MaxVisited: cfg.Crawler.SpiderMaxVisited,
				MaxKnown:   cfg.Crawler.SpiderMaxKnown,
				Timeout:    cfg.Crawler.RequestTimeout,
			}, p, log),
			discover.NewSitemap(fetcher, p, cfg.Crawler.SpiderMaxKnown, log),
			discover.NewCategoryPages(fetcher, log),
			discover.NewHomepage(fetcher, cfg.Crawler.SpiderMaxKnown, log),
		)
	}

	orchestrator := orchestrate.New(orchestrate.Config{
		MaxPerSite:    cfg.Crawler.MaxPerSite,
		BatchSize:     cfg.Crawler.BatchSize,
		MaxConcurrent: cfg.Crawler.MaxConcurrent,
		BatchDelay:    cfg.Crawler.BatchDelay,
		RefreshAfter:  cfg.Crawler.RefreshAfter,
		MaxFailures:   cfg.Crawler.MaxFailures,
		ObsoleteDays:  cfg.Crawler.ObsoleteDays,
	}, domains, siteRegistry, sites, links, attempts, stats,
		extractor, coord, newDiscoverer, m, log)

	return &Deps{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		Metrics:      m,
		Pacer:        p,
		Fetcher:      fetcher,
		Embedder:     embedder,
		Domains:      domains,
		SiteRegistry: siteRegistry,
		Links:        links,
		Sites:        sites,
		Attempts:     attempts,
		Articles:     articles,
		Stats:        stats,
		Vectors:      vectors,
		Orchestrator: orchestrator,
		Reconciler:   coordinator.NewReconciler(links, articles, vectors, domains, m, log),
		Retriever:    search.New(embedder, vectors, links, sites, articles, domains, log),
	}, nil
}

// Close releases the graph's resources.
func (d *Deps) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
