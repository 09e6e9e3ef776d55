// Package embed turns article text into embedding vectors via an external
// model endpoint.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single embedding request.
const DefaultTimeout = 30 * time.Second

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("cannot embed empty text")

// Provider computes an embedding vector for a piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds embedding endpoint settings.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// HTTPProvider calls a JSON embedding endpoint. The request and response
// shapes follow the common local-model convention: a model name and a
// prompt in, a single embedding array out.
type HTTPProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewHTTPProvider creates an embedding provider over HTTP.
func NewHTTPProvider(cfg Config) (*HTTPProvider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("embedding endpoint is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPProvider{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed computes the embedding for one piece of text.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("error encoding embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", res.StatusCode, payload)
	}

	var parsed embedResponse
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return nil, fmt.Errorf("error decoding embedding response: %w", decodeErr)
	}
	if len(parsed.Embedding) == 0 {
		return nil, errors.New("embedding endpoint returned no vector")
	}

	return parsed.Embedding, nil
}
