package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	colly "github.com/gocolly/colly/v2"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/pacer"
)

// SpiderConfig bounds the focused spider.
type SpiderConfig struct {
	UserAgent  string
	MaxDepth   int
	MaxVisited int
	MaxKnown   int
	Timeout    time.Duration
}

// Spider is the focused breadth-first strategy: it walks same-host pages
// from the site's base URL collecting every anchor it sees, bounded by
// depth, pages visited and links known. Request pacing follows the host
// pacer's policy so per-host overrides and adaptive back-off apply to
// discovery fetches too.
type Spider struct {
	cfg    SpiderConfig
	pacer  *pacer.Pacer
	logger logger.Interface
}

// NewSpider creates the spider strategy.
func NewSpider(cfg SpiderConfig, p *pacer.Pacer, log logger.Interface) *Spider {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MaxVisited <= 0 {
		cfg.MaxVisited = 50
	}
	if cfg.MaxKnown <= 0 {
		cfg.MaxKnown = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Spider{cfg: cfg, pacer: p, logger: log}
}

// Name identifies the strategy in logs.
func (s *Spider) Name() string { return "spider" }

// Discover walks the site collecting anchors until a bound is hit.
func (s *Spider) Discover(ctx context.Context, site *domain.Site) ([]Candidate, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("spider: parse base url: %w", err)
	}

	host := strings.ToLower(base.Hostname())

	delay, parallelism, err := s.pacer.HostPolicy(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("spider: host policy: %w", err)
	}

	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.MaxDepth(s.cfg.MaxDepth),
		colly.Async(true),
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowedDomains(host, "www."+host),
	)
	collector.SetRequestTimeout(s.cfg.Timeout)

	if limitErr := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       delay,
	}); limitErr != nil {
		return nil, fmt.Errorf("spider: set limit rule: %w", limitErr)
	}

	var mu sync.Mutex
	var candidates []Candidate
	visited := 0

	collector.OnRequest(func(r *colly.Request) {
		mu.Lock()
		defer mu.Unlock()
		if visited >= s.cfg.MaxVisited {
			r.Abort()
			return
		}
		visited++
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}

		mu.Lock()
		full := len(candidates) >= s.cfg.MaxKnown
		if !full {
			candidates = append(candidates, Candidate{
				URL:       link,
				ParentURL: e.Request.URL.String(),
				Depth:     e.Request.Depth,
			})
		}
		mu.Unlock()

		if full {
			return
		}

		// Follow same-host links to find deeper article pages.
		if err := e.Request.Visit(link); err != nil {
			return
		}
	})

	collector.OnError(func(r *colly.Response, visitErr error) {
		s.logger.Debug("spider fetch failed",
			"url", r.Request.URL.String(), "error", visitErr)
	})

	if visitErr := collector.Visit(site.BaseURL); visitErr != nil {
		return nil, fmt.Errorf("spider: visit base url: %w", visitErr)
	}
	collector.Wait()

	return candidates, nil
}
