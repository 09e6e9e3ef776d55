package orchestrate_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/coordinator"
	"github.com/newsloom/newsloom/internal/discover"
	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/extract"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/orchestrate"
	"github.com/newsloom/newsloom/internal/pacer"
	"github.com/newsloom/newsloom/internal/registry"
	"github.com/newsloom/newsloom/internal/vector"
)

const testUserAgent = "newsloom-test/1.0"

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func linkColumns() []string {
	return []string{
		"id", "site_id", "url", "url_hash", "parent_url", "depth", "state",
		"content_hash", "discovered_at", "last_crawled_at", "crawl_count",
		"error_count", "created_at", "updated_at",
	}
}

func linkRow(id, state, url string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(linkColumns()).AddRow(
		id, "alpha-news", url, "hash-"+id, nil, 1, state,
		nil, now, nil, 0, 0, now, now,
	)
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// stubStrategy feeds a fixed candidate list into the cascade.
type stubStrategy struct {
	candidates []discover.Candidate
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Discover(_ context.Context, _ *domain.Site) ([]discover.Candidate, error) {
	return s.candidates, nil
}

func articlePage(topic string) string {
	paragraphs := make([]string, 8)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf(
			"<p>Paragraph %d follows the %s cup final in enough detail to clear the minimum body length.</p>",
			i+1, topic)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<title>Breaking %s news from the cup final</title>
<meta name="author" content="Jane Reporter">
<meta property="article:published_time" content="2024-05-12T09:00:00Z">
</head>
<body><article><h1>Breaking %s news from the cup final</h1>
%s</article></body></html>`, topic, topic, strings.Join(paragraphs, "\n"))
}

// fakeElasticsearch answers the existence check and records indexing calls.
func fakeElasticsearch(t *testing.T) (*vector.Store, *[]string) {
	t.Helper()

	var mu sync.Mutex
	indexed := &[]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		mu.Lock()
		*indexed = append(*indexed, r.URL.Path)
		mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return vector.NewStore(client, 3, logger.NewNoop()), indexed
}

func footballDomains() *registry.DomainRegistry {
	return registry.NewDomainRegistry([]domain.Domain{
		{ID: "football", Name: "Football", Active: true, Keywords: []string{"football"}},
		{ID: "chess", Name: "Chess", Active: false},
	}, "newsloom", "dev")
}

func TestCrawlSiteRunsFullPipeline(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/news/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage("football")))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	articleURL := srv.URL + "/news/2024/05/football-cup-final"

	db, mock := newMockDB(t)
	vectors, indexed := fakeElasticsearch(t)

	p := pacer.New(pacer.Config{
		UserAgent:         testUserAgent,
		RequestsPerSecond: 1000,
		MaxConcurrent:     2,
	}, srv.Client(), metrics.New(prometheus.NewRegistry()), logger.NewNoop())
	fetcher := pacer.NewFetcher(p, srv.Client(), testUserAgent)

	domains := footballDomains()
	siteRegistry := registry.NewSiteRegistry([]domain.Site{{
		ID:       "alpha-news",
		Name:     "Alpha News",
		BaseURL:  srv.URL,
		DomainID: "football",
		Active:   true,
		Language: "en",
	}})

	links := linkstore.NewLinkRepository(db)
	coord := coordinator.New(
		links,
		linkstore.NewArticleRepository(db),
		vectors,
		stubEmbedder{},
		domains,
		metrics.New(prometheus.NewRegistry()),
		logger.NewNoop(),
	)

	orch := orchestrate.New(
		orchestrate.Config{
			MaxPerSite:   5,
			BatchSize:    1,
			MaxFailures:  5,
			RefreshAfter: 24 * time.Hour,
		},
		domains,
		siteRegistry,
		linkstore.NewSiteRepository(db),
		links,
		linkstore.NewAttemptRepository(db),
		linkstore.NewStatsRepository(db),
		extract.New(fetcher, logger.NewNoop()),
		coord,
		func() *discover.Discoverer {
			return discover.New(logger.NewNoop(), &stubStrategy{
				candidates: []discover.Candidate{{URL: articleURL, Depth: 1}},
			})
		},
		metrics.New(prometheus.NewRegistry()),
		logger.NewNoop(),
	)

	// Site upsert, link insert, crawlable selection.
	mock.ExpectExec("INSERT INTO sites").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM discovered_links WHERE site_id").
		WillReturnRows(linkRow("link-1", "new", articleURL))

	// Claim, then the dual write inside the coordinator.
	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM discovered_links WHERE id").
		WithArgs("link-1").
		WillReturnRows(linkRow("link-1", "crawling", articleURL))
	mock.ExpectQuery("SELECT (.+) FROM discovered_links WHERE content_hash").
		WillReturnRows(sqlmock.NewRows(linkColumns()))
	mock.ExpectExec("INSERT INTO extracted_articles").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("link-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Attempt history and the per-site rollup.
	mock.ExpectExec("INSERT INTO crawl_attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO crawl_stats").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := orch.CrawlSite(context.Background(), "alpha-news")
	require.NoError(t, err)

	assert.Equal(t, 1, result.SitesProcessed)
	assert.Equal(t, 1, result.LinksDiscovered)
	assert.Equal(t, 1, result.LinksCrawled)
	assert.Equal(t, 1, result.ArticlesExtracted)
	assert.Zero(t, result.Errors)

	require.Len(t, *indexed, 1)
	assert.True(t, strings.HasPrefix((*indexed)[0], "/newsloom_football_dev/_doc/"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCrawlDomainRejectsMissingOrInactive(t *testing.T) {
	t.Parallel()

	orch := orchestrate.New(orchestrate.Config{}, footballDomains(),
		registry.NewSiteRegistry(nil), nil, nil, nil, nil, nil, nil, nil,
		metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	for _, id := range []string{"rugby", "chess"} {
		_, err := orch.CrawlDomain(context.Background(), id)
		require.Error(t, err)
		assert.Equal(t, domain.ErrKindConfig, domain.KindOf(err))
	}
}

func TestCrawlSiteConfigErrors(t *testing.T) {
	t.Parallel()

	sites := registry.NewSiteRegistry([]domain.Site{
		{ID: "dormant", DomainID: "football", Active: false},
		{ID: "orphaned", DomainID: "chess", Active: true},
	})

	orch := orchestrate.New(orchestrate.Config{}, footballDomains(), sites,
		nil, nil, nil, nil, nil, nil, nil,
		metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	cases := []struct {
		name   string
		siteID string
	}{
		{name: "unknown site", siteID: "ghost"},
		{name: "inactive site", siteID: "dormant"},
		{name: "inactive domain", siteID: "orphaned"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := orch.CrawlSite(context.Background(), tc.siteID)
			require.Error(t, err)
			assert.Equal(t, domain.ErrKindConfig, domain.KindOf(err))
		})
	}
}

func TestCleanupMarksObsoleteAndPrunes(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)

	orch := orchestrate.New(orchestrate.Config{}, footballDomains(),
		registry.NewSiteRegistry(nil), nil,
		linkstore.NewLinkRepository(db), linkstore.NewAttemptRepository(db),
		nil, nil, nil, nil,
		metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	mock.ExpectExec("UPDATE discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("DELETE FROM crawl_attempts").
		WillReturnResult(sqlmock.NewResult(0, 12))

	obsolete, pruned, err := orch.Cleanup(context.Background(), 45)
	require.NoError(t, err)
	assert.Equal(t, 7, obsolete)
	assert.Equal(t, 12, pruned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupDefaultsRetentionWindow(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)

	orch := orchestrate.New(orchestrate.Config{}, footballDomains(),
		registry.NewSiteRegistry(nil), nil,
		linkstore.NewLinkRepository(db), linkstore.NewAttemptRepository(db),
		nil, nil, nil, nil,
		metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	mock.ExpectExec("UPDATE discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM crawl_attempts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, _, err := orch.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupStopsOnLinkSweepFailure(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)

	orch := orchestrate.New(orchestrate.Config{}, footballDomains(),
		registry.NewSiteRegistry(nil), nil,
		linkstore.NewLinkRepository(db), linkstore.NewAttemptRepository(db),
		nil, nil, nil, nil,
		metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	mock.ExpectExec("UPDATE discovered_links").
		WillReturnError(assert.AnError)

	obsolete, pruned, err := orch.Cleanup(context.Background(), 30)
	require.Error(t, err)
	assert.Zero(t, obsolete)
	assert.Zero(t, pruned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStale(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)

	orch := orchestrate.New(orchestrate.Config{}, footballDomains(),
		registry.NewSiteRegistry(nil), nil,
		linkstore.NewLinkRepository(db), nil, nil, nil, nil, nil,
		metrics.New(prometheus.NewRegistry()), logger.NewNoop())

	mock.ExpectExec("UPDATE discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 3))

	recovered, err := orch.RecoverStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, recovered)
	assert.NoError(t, mock.ExpectationsWereMet())
}
