package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/newsloom/newsloom/internal/domain"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	politeness := domain.NewPipelineError(domain.ErrKindPoliteness, "robots denied", nil)
	assert.Equal(t, domain.ErrKindPoliteness, domain.KindOf(politeness))

	wrapped := fmt.Errorf("processing link: %w",
		domain.NewPipelineError(domain.ErrKindRelevance, "no keywords", nil))
	assert.Equal(t, domain.ErrKindRelevance, domain.KindOf(wrapped))

	assert.Equal(t, domain.ErrKindTransport, domain.KindOf(errors.New("dial tcp: timeout")))
}

func TestPipelineErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := domain.NewPipelineError(domain.ErrKindTransport, "fetch failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "fetch failed")
	assert.Contains(t, err.Error(), "connection refused")

	bare := domain.NewPipelineError(domain.ErrKindConfig, "domain inactive", nil)
	assert.Equal(t, "config: domain inactive", bare.Error())
}

func TestCountsTowardBlocked(t *testing.T) {
	t.Parallel()

	exempt := []domain.ErrorKind{
		domain.ErrKindPoliteness,
		domain.ErrKindRelevance,
		domain.ErrKindDuplicate,
	}
	for _, kind := range exempt {
		assert.False(t, kind.CountsTowardBlocked(), "kind %s", kind)
	}

	counted := []domain.ErrorKind{
		domain.ErrKindTransport,
		domain.ErrKindExtraction,
		domain.ErrKindStore,
		domain.ErrKindConfig,
		domain.ErrKindFatal,
	}
	for _, kind := range counted {
		assert.True(t, kind.CountsTowardBlocked(), "kind %s", kind)
	}
}

func TestRunResultAdd(t *testing.T) {
	t.Parallel()

	total := &domain.RunResult{SitesProcessed: 1, LinksCrawled: 10}
	total.Add(domain.RunResult{SitesProcessed: 2, LinksDiscovered: 5, LinksCrawled: 7, ArticlesExtracted: 4, Errors: 1})

	assert.Equal(t, 3, total.SitesProcessed)
	assert.Equal(t, 5, total.LinksDiscovered)
	assert.Equal(t, 17, total.LinksCrawled)
	assert.Equal(t, 4, total.ArticlesExtracted)
	assert.Equal(t, 1, total.Errors)
}
