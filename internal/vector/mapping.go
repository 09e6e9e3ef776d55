package vector

// collectionMapping builds the index mapping for one collection. The
// embedding field is a dense_vector sized to the embedding model, indexed
// for cosine kNN.
func collectionMapping(dimensions int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":             map[string]any{"type": "keyword"},
				"title":          map[string]any{"type": "text"},
				"body":           map[string]any{"type": "text"},
				"url":            map[string]any{"type": "keyword"},
				"site_name":      map[string]any{"type": "keyword"},
				"domain_id":      map[string]any{"type": "keyword"},
				"published_date": map[string]any{"type": "date"},
				"extracted_at":   map[string]any{"type": "date"},
				"quality_score":  map[string]any{"type": "float"},
				"keywords":       map[string]any{"type": "keyword"},
				"link_id":        map[string]any{"type": "keyword"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       dimensions,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}
