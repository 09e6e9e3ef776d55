package coordinator

import (
	"context"
	"errors"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/registry"
	"github.com/newsloom/newsloom/internal/vector"
)

// SyncResult summarises one reconciliation pass.
type SyncResult struct {
	OrphansDeleted int
	LinksRepaired  int
	Errors         int
}

// Reconciler repairs the window the non-atomic dual write leaves open:
// vector objects whose link or article row disappeared are deleted, and
// article rows missing their vector are sent back through the pipeline.
type Reconciler struct {
	links    *linkstore.LinkRepository
	articles *linkstore.ArticleRepository
	vectors  *vector.Store
	domains  *registry.DomainRegistry
	metrics  *metrics.Metrics
	logger   logger.Interface
}

// NewReconciler creates the sync reconciler.
func NewReconciler(
	links *linkstore.LinkRepository,
	articles *linkstore.ArticleRepository,
	vectors *vector.Store,
	domains *registry.DomainRegistry,
	m *metrics.Metrics,
	log logger.Interface,
) *Reconciler {
	return &Reconciler{
		links:    links,
		articles: articles,
		vectors:  vectors,
		domains:  domains,
		metrics:  m,
		logger:   log,
	}
}

// Run reconciles every active domain's collection.
func (r *Reconciler) Run(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	for _, d := range r.domains.All() {
		if !d.Active {
			continue
		}
		if err := r.reconcileDomain(ctx, d.ID, result); err != nil {
			r.logger.Error("domain reconciliation failed", "domain", d.ID, "error", err)
			result.Errors++
		}
	}

	if err := r.repairMissingVectors(ctx, result); err != nil {
		return result, err
	}

	return result, nil
}

// reconcileDomain deletes vector objects whose back-pointer no longer
// names a live link with a matching article row.
func (r *Reconciler) reconcileDomain(ctx context.Context, domainID string, result *SyncResult) error {
	collection := r.domains.CollectionName(domainID)

	refs, err := r.vectors.ListRefs(ctx, collection, 0)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		orphaned, checkErr := r.isOrphan(ctx, ref)
		if checkErr != nil {
			result.Errors++
			continue
		}
		if !orphaned {
			continue
		}

		if delErr := r.vectors.Delete(ctx, collection, ref.ID); delErr != nil {
			r.logger.Warn("orphan vector delete failed",
				"collection", collection, "vector_id", ref.ID, "error", delErr)
			result.Errors++
			continue
		}

		r.logger.Info("deleted orphan vector",
			"collection", collection, "vector_id", ref.ID, "link_id", ref.LinkID)
		r.metrics.OrphansDeletedTotal.Inc()
		result.OrphansDeleted++
	}

	return nil
}

// isOrphan reports whether a vector object has lost its relational anchor:
// the link is gone or obsolete, or no article row points back at it.
func (r *Reconciler) isOrphan(ctx context.Context, ref vector.VectorRef) (bool, error) {
	if ref.LinkID == "" {
		return true, nil
	}

	link, err := r.links.GetByID(ctx, ref.LinkID)
	if err != nil {
		if errors.Is(err, linkstore.ErrLinkNotFound) {
			return true, nil
		}
		return false, err
	}
	if link.State == domain.LinkStateObsolete {
		return true, nil
	}

	article, err := r.articles.GetByLinkID(ctx, ref.LinkID)
	if err != nil {
		if errors.Is(err, linkstore.ErrArticleNotFound) {
			return true, nil
		}
		return false, err
	}

	return article.VectorID == nil || *article.VectorID != ref.ID, nil
}

// repairMissingVectors returns links whose article row lost its vector to
// a re-crawlable state so the pipeline re-ingests them.
func (r *Reconciler) repairMissingVectors(ctx context.Context, result *SyncResult) error {
	articles, err := r.articles.ListMissingVector(ctx, 0)
	if err != nil {
		return err
	}

	for _, article := range articles {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if delErr := r.articles.DeleteByLinkID(ctx, article.LinkID); delErr != nil {
			result.Errors++
			continue
		}
		if resetErr := r.links.ResetToNew(ctx, article.LinkID); resetErr != nil {
			r.logger.Warn("link reset failed", "link_id", article.LinkID, "error", resetErr)
			result.Errors++
			continue
		}

		r.logger.Info("reset link for re-ingest", "link_id", article.LinkID)
		result.LinksRepaired++
	}

	return nil
}
