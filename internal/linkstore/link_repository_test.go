package linkstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/linkstore"
)

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

func linkRow(id, state string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(linkColumns()).AddRow(
		id, "example-football", "https://football.example.com/news/1",
		"hash-"+id, nil, 1, state, nil, now, nil, 0, 0, now, now,
	)
}

func TestCreateBatchCountsOnlyNewRows(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	// First insert lands, second hits the url_hash conflict.
	mock.ExpectExec("INSERT INTO discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 0))

	links := []*domain.DiscoveredLink{
		{SiteID: "s1", URL: "https://a.example.com/news/1", URLHash: "h1"},
		{SiteID: "s1", URL: "https://a.example.com/news/1?x=1", URLHash: "h1"},
	}

	created, err := repo.CreateBatch(context.Background(), links)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// Defaults are filled in before insertion.
	assert.NotEmpty(t, links[0].ID)
	assert.Equal(t, domain.LinkStateNew, links[0].State)
	assert.False(t, links[0].DiscoveredAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM discovered_links WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(linkColumns()))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, linkstore.ErrLinkNotFound)
}

func TestClaim(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), "link-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second worker loses the race: the state guard matches no row.
	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = repo.Claim(context.Background(), "link-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCrawled(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("link-1", "content-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkCrawled(context.Background(), "link-1", "content-hash"))
}

func TestMarkCrawledRequiresCrawlingState(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("link-1", "content-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkCrawled(context.Background(), "link-1", "content-hash")
	assert.ErrorIs(t, err, linkstore.ErrLinkNotFound)
}

func TestMarkFailed(t *testing.T) {
	t.Parallel()

	t.Run("counted failure increments error count", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		repo := linkstore.NewLinkRepository(db)

		mock.ExpectExec("UPDATE discovered_links").
			WithArgs("link-1", 1, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkFailed(context.Background(), "link-1", true, 5))
	})

	t.Run("politeness failure passes zero increment", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		repo := linkstore.NewLinkRepository(db)

		mock.ExpectExec("UPDATE discovered_links").
			WithArgs("link-1", 0, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkFailed(context.Background(), "link-1", false, 5))
	})

	t.Run("zero increment never promotes to blocked", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		repo := linkstore.NewLinkRepository(db)

		// A non-counting failure on a link already at the failure ceiling
		// must stay FAILED, so the blocked transition is gated on the
		// increment being positive.
		mock.ExpectExec(`CASE WHEN \$2 > 0 AND error_count \+ \$2 >= \$3 THEN 'blocked'`).
			WithArgs("link-1", 0, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkFailed(context.Background(), "link-1", false, 5))
	})
}

func TestResetToNewClearsFailureBudget(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectExec(`SET state = 'new', content_hash = NULL, error_count = 0`).
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.ResetToNew(context.Background(), "link-1"))
}

func TestResetToNewNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectExec("UPDATE discovered_links").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ResetToNew(context.Background(), "missing")
	assert.ErrorIs(t, err, linkstore.ErrLinkNotFound)
}

func TestFindLiveByContentHash(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM discovered_links").
		WithArgs("dup-hash", "self-id").
		WillReturnRows(linkRow("other-id", domain.LinkStateCrawled))

	link, err := repo.FindLiveByContentHash(context.Background(), "dup-hash", "self-id")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "other-id", link.ID)
}

func TestFindLiveByContentHashNoMatch(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM discovered_links").
		WithArgs("unique-hash", "self-id").
		WillReturnRows(sqlmock.NewRows(linkColumns()))

	link, err := repo.FindLiveByContentHash(context.Background(), "unique-hash", "self-id")
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestRecoverStale(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectExec("UPDATE discovered_links").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RecoverStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSelectCrawlableEmptyResultIsNotNil(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM discovered_links").
		WillReturnRows(sqlmock.NewRows(linkColumns()))

	links, err := repo.SelectCrawlable(context.Background(), "s1", 10, time.Hour, 5)
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestCountByState(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	rows := sqlmock.NewRows([]string{"state", "count"}).
		AddRow("new", 12).
		AddRow("crawled", 40).
		AddRow("blocked", 2)

	mock.ExpectQuery("SELECT state, COUNT").
		WillReturnRows(rows)

	counts, err := repo.CountByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"new": 12, "crawled": 40, "blocked": 2}, counts)
}

func TestCountByStateQueryError(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := linkstore.NewLinkRepository(db)

	mock.ExpectQuery("SELECT state, COUNT").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.CountByState(context.Background())
	assert.Error(t, err)
}
