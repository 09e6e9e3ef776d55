// Package vector provides the Elasticsearch-backed vector store used for
// semantic retrieval. Each domain and environment pair gets its own
// collection (index) carrying a dense_vector field for kNN search.
package vector

import (
	"context"
	"errors"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/newsloom/newsloom/internal/logger"
)

const (
	// DefaultOpTimeout bounds single-document operations.
	DefaultOpTimeout = 10 * time.Second
	// DefaultSearchTimeout bounds search operations.
	DefaultSearchTimeout = 30 * time.Second
)

// Config holds vector store connection settings.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	APIKey     string
	Dimensions int
}

// NewClient creates and verifies an Elasticsearch client.
func NewClient(cfg Config, log logger.Interface) (*es.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("vector store addresses are required")
	}

	clientConfig := es.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping vector store: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error pinging vector store: %s", res.String())
	}

	log.Debug("Connected to vector store", "addresses", cfg.Addresses)

	return client, nil
}

// Ping verifies the cluster is reachable. Used by the health command.
func Ping(ctx context.Context, client *es.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping vector store: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("vector store unhealthy: %s", res.String())
	}
	return nil
}
