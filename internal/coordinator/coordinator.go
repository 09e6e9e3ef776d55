// Package coordinator performs the dual write across the relational link
// store and the vector store. An article becomes either fully visible in
// both stores, fully absent, or clearly marked for repair.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/embed"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/linkutil"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/registry"
	"github.com/newsloom/newsloom/internal/vector"
)

// compensationAttempts is how many times a compensating vector delete is
// retried before the orphan is left to the reconciler.
const compensationAttempts = 3

// Coordinator writes one extracted article through both stores in order:
// vector insert, relational insert, link state transition.
type Coordinator struct {
	links    *linkstore.LinkRepository
	articles *linkstore.ArticleRepository
	vectors  *vector.Store
	embedder embed.Provider
	domains  *registry.DomainRegistry
	metrics  *metrics.Metrics
	logger   logger.Interface
}

// New creates a store coordinator.
func New(
	links *linkstore.LinkRepository,
	articles *linkstore.ArticleRepository,
	vectors *vector.Store,
	embedder embed.Provider,
	domains *registry.DomainRegistry,
	m *metrics.Metrics,
	log logger.Interface,
) *Coordinator {
	return &Coordinator{
		links:    links,
		articles: articles,
		vectors:  vectors,
		embedder: embedder,
		domains:  domains,
		metrics:  m,
		logger:   log,
	}
}

// Store ingests one article for a link currently in CRAWLING state.
// Returns the content hash recorded on the link. Duplicate content aborts
// before any write and surfaces as a duplicate pipeline error.
func (c *Coordinator) Store(ctx context.Context, linkID string, article *domain.Article) (string, error) {
	link, err := c.links.GetByID(ctx, linkID)
	if err != nil {
		return "", domain.NewPipelineError(domain.ErrKindStore, "link lookup failed", err)
	}
	if link.State != domain.LinkStateCrawling {
		return "", domain.NewPipelineError(domain.ErrKindStore,
			fmt.Sprintf("link %s is %s, expected crawling", linkID, link.State), nil)
	}

	contentHash := linkutil.ContentHash(article.Content)

	existing, err := c.links.FindLiveByContentHash(ctx, contentHash, linkID)
	if err != nil {
		return "", domain.NewPipelineError(domain.ErrKindStore, "duplicate check failed", err)
	}
	if existing != nil {
		return "", domain.NewPipelineError(domain.ErrKindDuplicate,
			fmt.Sprintf("content already held by link %s", existing.ID), nil)
	}

	embedding, err := c.embedder.Embed(ctx, article.Title+"\n\n"+article.Content)
	if err != nil {
		c.metrics.StoreFailuresTotal.WithLabelValues("embed").Inc()
		return "", domain.NewPipelineError(domain.ErrKindStore, "embedding failed", err)
	}

	if _, ok := c.domains.GetActive(article.DomainID); !ok {
		return "", domain.NewPipelineError(domain.ErrKindConfig,
			fmt.Sprintf("domain %s missing or inactive", article.DomainID), nil)
	}
	collection := c.domains.CollectionName(article.DomainID)
	if ensureErr := c.vectors.EnsureCollection(ctx, collection); ensureErr != nil {
		return "", domain.NewPipelineError(domain.ErrKindStore, "collection check failed", ensureErr)
	}

	vec := &domain.ArticleVector{
		Title:         article.Title,
		Body:          article.Content,
		URL:           article.URL,
		SiteName:      article.Source,
		DomainID:      article.DomainID,
		PublishedDate: article.PublishedDate,
		ExtractedAt:   time.Now().UTC(),
		QualityScore:  article.QualityScore,
		Keywords:      article.Keywords,
		LinkID:        linkID,
		Embedding:     embedding,
	}

	vectorID, err := c.vectors.Upsert(ctx, collection, vec)
	if err != nil {
		c.metrics.StoreFailuresTotal.WithLabelValues("vector").Inc()
		return "", domain.NewPipelineError(domain.ErrKindStore, "vector write failed", err)
	}

	row := &domain.ExtractedArticle{
		LinkID:        linkID,
		VectorID:      &vectorID,
		Title:         article.Title,
		PublishedDate: article.PublishedDate,
		ContentLength: len(article.Content),
		QualityScore:  article.QualityScore,
		DomainID:      article.DomainID,
		Keywords:      article.Keywords,
		Metadata:      article.Metadata,
	}
	if article.Author != "" {
		author := article.Author
		row.Author = &author
	}

	if insertErr := c.articles.Create(ctx, row); insertErr != nil {
		c.metrics.StoreFailuresTotal.WithLabelValues("article").Inc()
		c.compensate(ctx, collection, vectorID, linkID)
		return "", domain.NewPipelineError(domain.ErrKindStore, "article write failed", insertErr)
	}

	if markErr := c.links.MarkCrawled(ctx, linkID, contentHash); markErr != nil {
		// Both stores hold the article; the reconciler repairs the state.
		c.metrics.StoreFailuresTotal.WithLabelValues("link-transition").Inc()
		c.logger.Error("link transition failed after dual write",
			"link_id", linkID, "vector_id", vectorID, "error", markErr)
		return "", domain.NewPipelineError(domain.ErrKindStore, "link transition failed", markErr)
	}

	return contentHash, nil
}

// compensate deletes the vector object written before a relational
// failure. After the retry budget the orphan is left for the reconciler.
func (c *Coordinator) compensate(ctx context.Context, collection, vectorID, linkID string) {
	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		if err := c.vectors.Delete(ctx, collection, vectorID); err == nil {
			return
		} else if attempt == compensationAttempts {
			c.logger.Error("compensating vector delete failed",
				"collection", collection, "vector_id", vectorID,
				"link_id", linkID, "attempts", attempt, "error", err)
		}
	}
}
