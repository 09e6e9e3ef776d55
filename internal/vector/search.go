package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/newsloom/newsloom/internal/domain"
)

const defaultKNNCandidates = 100

// SearchOptions narrows a kNN query.
type SearchOptions struct {
	Limit      int
	MinQuality float64
	DomainID   string
}

// ScoredVector is one kNN hit with its cosine similarity.
type ScoredVector struct {
	Vector     domain.ArticleVector
	Similarity float64
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string               `json:"_id"`
			Score  float64              `json:"_score"`
			Source domain.ArticleVector `json:"_source"`
			Sort   []any                `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// KNNSearch runs a kNN query against one collection, filtered by quality
// floor and optionally by domain. Results come back ordered by similarity
// descending.
func (s *Store) KNNSearch(
	ctx context.Context,
	collection string,
	embedding []float32,
	opts SearchOptions,
) ([]ScoredVector, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	candidates := defaultKNNCandidates
	if opts.Limit > candidates {
		candidates = opts.Limit
	}

	var filters []map[string]any
	if opts.MinQuality > 0 {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"quality_score": map[string]any{"gte": opts.MinQuality},
			},
		})
	}
	if opts.DomainID != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"domain_id": opts.DomainID},
		})
	}

	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   embedding,
		"k":              opts.Limit,
		"num_candidates": candidates,
	}
	if len(filters) > 0 {
		knn["filter"] = map[string]any{
			"bool": map[string]any{"filter": filters},
		}
	}

	query := map[string]any{
		"knn":  knn,
		"size": opts.Limit,
	}

	var buf bytes.Buffer
	if encodeErr := json.NewEncoder(&buf).Encode(query); encodeErr != nil {
		return nil, fmt.Errorf("error encoding knn query: %w", encodeErr)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(collection),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run knn search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("knn search failed: %s", res.String())
	}

	var body searchResponse
	if decodeErr := json.NewDecoder(res.Body).Decode(&body); decodeErr != nil {
		return nil, fmt.Errorf("error decoding knn response: %w", decodeErr)
	}

	results := make([]ScoredVector, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		vec := hit.Source
		vec.ID = hit.ID
		results = append(results, ScoredVector{
			Vector:     vec,
			Similarity: hit.Score,
		})
	}

	return results, nil
}

// VectorRef is a lightweight listing of one stored object, enough for the
// reconciler to match vectors against relational rows.
type VectorRef struct {
	ID     string
	LinkID string
}

// ListRefs pages through the collection returning id and link_id for every
// object. Used by the reconciler to find orphans. Pagination uses
// search_after over the sortable id field, so listings larger than the
// index's max_result_window still come back complete.
func (s *Store) ListRefs(ctx context.Context, collection string, pageSize int) ([]VectorRef, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if pageSize <= 0 {
		pageSize = 500
	}

	var refs []VectorRef
	var searchAfter []any
	for {
		query := map[string]any{
			"query":   map[string]any{"match_all": map[string]any{}},
			"_source": []string{"link_id"},
			"size":    pageSize,
			"sort":    []map[string]any{{"id": map[string]any{"order": "asc"}}},
		}
		if searchAfter != nil {
			query["search_after"] = searchAfter
		}

		var buf bytes.Buffer
		if encodeErr := json.NewEncoder(&buf).Encode(query); encodeErr != nil {
			return nil, fmt.Errorf("error encoding list query: %w", encodeErr)
		}

		res, err := s.client.Search(
			s.client.Search.WithContext(ctx),
			s.client.Search.WithIndex(collection),
			s.client.Search.WithBody(&buf),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to list vector objects: %w", err)
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			return nil, fmt.Errorf("failed to list vector objects: %s", msg)
		}

		var body searchResponse
		decodeErr := json.NewDecoder(res.Body).Decode(&body)
		res.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("error decoding list response: %w", decodeErr)
		}

		if len(body.Hits.Hits) == 0 {
			break
		}
		for _, hit := range body.Hits.Hits {
			refs = append(refs, VectorRef{ID: hit.ID, LinkID: hit.Source.LinkID})
		}
		if len(body.Hits.Hits) < pageSize {
			break
		}
		last := body.Hits.Hits[len(body.Hits.Hits)-1]
		searchAfter = last.Sort
		if len(searchAfter) == 0 {
			searchAfter = []any{last.ID}
		}
	}

	return refs, nil
}
