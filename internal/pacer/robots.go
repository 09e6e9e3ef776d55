// Package pacer gates outbound HTTP requests per host: robots.txt
// compliance, token pacing with adaptive back-off, and bounded concurrency.
package pacer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// RobotsCache caches parsed robots.txt policies per host. While a fetch is
// in flight, other requests for the same host are temporarily permitted so
// they do not pile up behind the download. Fetch failures cache a
// permissive policy with a shorter TTL.
type RobotsCache struct {
	httpClient *http.Client
	userAgent  string
	ttl        time.Duration
	failureTTL time.Duration

	mu          sync.Mutex
	entries     map[string]*robotsEntry // keyed by host
	downloading map[string]bool
}

// robotsEntry stores a parsed policy and its expiry metadata.
type robotsEntry struct {
	data       *robotstxt.RobotsData
	sitemaps   []string
	fetchedAt  time.Time
	ttl        time.Duration
	permissive bool // robots.txt missing, errored, or unparseable
}

// expired reports whether the entry is past its TTL.
func (e *robotsEntry) expired(now time.Time) bool {
	return now.Sub(e.fetchedAt) > e.ttl
}

// NewRobotsCache creates a robots.txt cache.
func NewRobotsCache(client *http.Client, userAgent string, ttl, failureTTL time.Duration) *RobotsCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if failureTTL <= 0 {
		failureTTL = time.Hour
	}

	return &RobotsCache{
		httpClient:  client,
		userAgent:   userAgent,
		ttl:         ttl,
		failureTTL:  failureTTL,
		entries:     make(map[string]*robotsEntry),
		downloading: make(map[string]bool),
	}
}

// Allowed reports whether the crawler identity may fetch rawURL according
// to the host's cached robots.txt, fetching the policy on first use.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry, err := c.getOrFetch(ctx, host, parsed.Scheme)
	if err != nil {
		return false, err
	}

	// nil entry means another goroutine is downloading; permit temporarily
	// so callers are not starved behind the fetch.
	if entry == nil || entry.permissive {
		return true, nil
	}

	return entry.data.TestAgent(parsed.Path, c.userAgent), nil
}

// SitemapURLs returns the sitemap URLs advertised in the host's robots.txt.
// The policy is fetched if not cached.
func (c *RobotsCache) SitemapURLs(ctx context.Context, host string) ([]string, error) {
	entry, err := c.getOrFetch(ctx, strings.ToLower(host), "https")
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, nil
	}

	return entry.sitemaps, nil
}

// CrawlDelay returns the crawl-delay from the host's cached policy, or 0.
func (c *RobotsCache) CrawlDelay(host string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[strings.ToLower(host)]
	if !ok || entry.permissive || entry.data == nil {
		return 0
	}

	group := entry.data.FindGroup(c.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

// getOrFetch returns the cached entry, or fetches it. Returns (nil, nil)
// when another goroutine already holds the download slot for the host.
func (c *RobotsCache) getOrFetch(ctx context.Context, host, scheme string) (*robotsEntry, error) {
	c.mu.Lock()
	if entry, ok := c.entries[host]; ok && !entry.expired(time.Now()) {
		c.mu.Unlock()
		return entry, nil
	}
	if c.downloading[host] {
		c.mu.Unlock()
		return nil, nil
	}
	c.downloading[host] = true
	c.mu.Unlock()

	entry := c.fetch(ctx, host, scheme)

	c.mu.Lock()
	c.entries[host] = entry
	delete(c.downloading, host)
	c.mu.Unlock()

	return entry, nil
}

// fetch downloads and parses robots.txt for the host. Any failure yields a
// permissive entry with the shorter failure TTL.
func (c *RobotsCache) fetch(ctx context.Context, host, scheme string) *robotsEntry {
	if scheme == "" {
		scheme = "https"
	}

	body, statusCode, err := c.doFetch(ctx, scheme+"://"+host+robotsTxtPath)
	if err != nil {
		return &robotsEntry{fetchedAt: time.Now(), ttl: c.failureTTL, permissive: true}
	}

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &robotsEntry{fetchedAt: time.Now(), ttl: c.failureTTL, permissive: true}
	}

	data, parseErr := robotstxt.FromBytes(body)
	if parseErr != nil {
		return &robotsEntry{fetchedAt: time.Now(), ttl: c.failureTTL, permissive: true}
	}

	return &robotsEntry{
		data:      data,
		sitemaps:  data.Sitemaps,
		fetchedAt: time.Now(),
		ttl:       c.ttl,
	}
}

// doFetch performs the HTTP GET for a robots.txt URL.
func (c *RobotsCache) doFetch(ctx context.Context, robotsURL string) (body []byte, statusCode int, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if reqErr != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", reqErr)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", doErr)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxRobotsBodyBytes)

	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", readErr)
	}

	return body, resp.StatusCode, nil
}
