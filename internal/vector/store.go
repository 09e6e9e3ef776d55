package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
)

// Store wraps the Elasticsearch client with collection-scoped vector
// operations.
type Store struct {
	client     *es.Client
	dimensions int
	logger     logger.Interface
}

// NewStore creates a vector store over an existing client.
func NewStore(client *es.Client, dimensions int, log logger.Interface) *Store {
	return &Store{
		client:     client,
		dimensions: dimensions,
		logger:     log,
	}
}

// EnsureCollection creates the collection with the vector mapping if it
// does not already exist.
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpTimeout)
	defer cancel()

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	var buf bytes.Buffer
	if encodeErr := json.NewEncoder(&buf).Encode(collectionMapping(s.dimensions)); encodeErr != nil {
		return fmt.Errorf("error encoding mapping: %w", encodeErr)
	}

	res, err := s.client.Indices.Create(
		collection,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(&buf),
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to create collection %s: %s", collection, res.String())
	}

	s.logger.Info("Created vector collection", "collection", collection)
	return nil
}

func (s *Store) collectionExists(ctx context.Context, collection string) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{collection},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// Upsert writes one vector object and returns its id. A missing id is
// assigned before indexing so the relational row can record it.
func (s *Store) Upsert(ctx context.Context, collection string, vec *domain.ArticleVector) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpTimeout)
	defer cancel()

	if vec.ID == "" {
		vec.ID = uuid.New().String()
	}
	if len(vec.Embedding) != s.dimensions {
		return "", fmt.Errorf("embedding has %d dimensions, collection expects %d",
			len(vec.Embedding), s.dimensions)
	}

	var buf bytes.Buffer
	if encodeErr := json.NewEncoder(&buf).Encode(vec); encodeErr != nil {
		return "", fmt.Errorf("error encoding vector object: %w", encodeErr)
	}

	res, err := s.client.Index(
		collection,
		&buf,
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(vec.ID),
		s.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert vector object: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", fmt.Errorf("failed to upsert vector object %s: %s", vec.ID, res.String())
	}

	return vec.ID, nil
}

// Delete removes one vector object. Deleting an id that does not exist is
// not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpTimeout)
	defer cancel()

	res, err := s.client.Delete(
		collection,
		id,
		s.client.Delete.WithContext(ctx),
		s.client.Delete.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("failed to delete vector object: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to delete vector object %s: %s", id, res.String())
	}

	return nil
}

// Exists reports whether a vector object is present.
func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpTimeout)
	defer cancel()

	res, err := s.client.Exists(
		collection,
		id,
		s.client.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check vector object existence: %w", err)
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// Count returns the number of vector objects in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpTimeout)
	defer cancel()

	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(collection),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count vector objects: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("failed to count vector objects: %s", res.String())
	}

	var body struct {
		Count int `json:"count"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&body); decodeErr != nil {
		return 0, fmt.Errorf("error decoding count response: %w", decodeErr)
	}

	return body.Count, nil
}
