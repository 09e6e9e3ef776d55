package discover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/discover"
	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/pacer"
)

func spiderSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/news/1">one</a>
			<a href="/news/2">two</a>
			<a href="https://elsewhere.example.org/x">away</a>
		</body></html>`))
	})
	mux.HandleFunc("/news/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/news/deep">deep</a></body></html>`))
	})
	mux.HandleFunc("/news/2", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>nothing here</body></html>`))
	})

	return srv
}

func TestSpiderWalksSameHostPages(t *testing.T) {
	t.Parallel()

	srv := spiderSite(t)

	spider := discover.NewSpider(discover.SpiderConfig{
		UserAgent: testUserAgent,
		MaxDepth:  2,
	}, newTestPacer(t, srv), logger.NewNoop())
	assert.Equal(t, "spider", spider.Name())

	candidates, err := spider.Discover(context.Background(), &domain.Site{ID: "alpha", BaseURL: srv.URL})
	require.NoError(t, err)

	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}

	// The off-host anchor is collected but never followed; /news/deep sits
	// past the depth bound so its own anchors are absent.
	assert.ElementsMatch(t, []string{
		srv.URL + "/news/1",
		srv.URL + "/news/2",
		"https://elsewhere.example.org/x",
		srv.URL + "/news/deep",
	}, urls)

	for _, c := range candidates {
		assert.NotEmpty(t, c.ParentURL)
		assert.GreaterOrEqual(t, c.Depth, 1)
	}
}

func TestSpiderStopsAtMaxVisited(t *testing.T) {
	t.Parallel()

	srv := spiderSite(t)

	spider := discover.NewSpider(discover.SpiderConfig{
		UserAgent:  testUserAgent,
		MaxDepth:   3,
		MaxVisited: 1,
	}, newTestPacer(t, srv), logger.NewNoop())

	candidates, err := spider.Discover(context.Background(), &domain.Site{ID: "alpha", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestSpiderStopsAtMaxKnown(t *testing.T) {
	t.Parallel()

	srv := spiderSite(t)

	spider := discover.NewSpider(discover.SpiderConfig{
		UserAgent: testUserAgent,
		MaxDepth:  1,
		MaxKnown:  2,
	}, newTestPacer(t, srv), logger.NewNoop())

	candidates, err := spider.Discover(context.Background(), &domain.Site{ID: "alpha", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestSpiderFollowsHostPacingPolicy(t *testing.T) {
	t.Parallel()

	srv := spiderSite(t)

	p := pacer.New(pacer.Config{
		UserAgent:         testUserAgent,
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
		Overrides: map[string]pacer.HostOverride{
			srv.URL: {RequestsPerSecond: 20, MaxConcurrent: 1},
		},
	}, srv.Client(), metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	spider := discover.NewSpider(discover.SpiderConfig{
		UserAgent: testUserAgent,
		MaxDepth:  2,
	}, p, logger.NewNoop())

	start := time.Now()
	candidates, err := spider.Discover(context.Background(), &domain.Site{ID: "alpha", BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	// Three same-host pages at one request per 50ms cannot finish faster
	// than two inter-request waits.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
