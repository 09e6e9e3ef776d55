package pacer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// defaultRetryAfter is used when a 429 response carries no usable
// Retry-After header.
const defaultRetryAfter = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// HTTPError reports a non-2xx response status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// FetchResult is the outcome of one paced page fetch.
type FetchResult struct {
	Body         []byte
	StatusCode   int
	ContentType  string
	FinalURL     string
	ResponseTime time.Duration
}

// Fetcher performs politeness-gated HTTP GETs through a Pacer. Every fetch
// acquires a host slot, sends browser-shaped headers and reports the
// outcome back for delay adaptation.
type Fetcher struct {
	pacer     *Pacer
	client    *http.Client
	userAgent string
}

// NewFetcher creates a paced fetcher.
func NewFetcher(p *Pacer, client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{pacer: p, client: client, userAgent: userAgent}
}

// Fetch downloads one page. language hints the site's locale in the
// Accept-Language header; pass "" when unknown. Robots denial surfaces as
// ErrRobotsForbidden; non-2xx statuses surface as *HTTPError with the body
// discarded. A 429 additionally records the Retry-After window on the host.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, language string) (*FetchResult, error) {
	if err := f.pacer.Acquire(ctx, rawURL); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := f.get(ctx, rawURL, language)
	if err != nil {
		f.pacer.Release(rawURL, OutcomeServerError)
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		body, readErr := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		elapsed := time.Since(start)
		if readErr != nil {
			f.pacer.Release(rawURL, OutcomeServerError)
			return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, readErr)
		}
		f.pacer.Release(rawURL, OutcomeSuccess)
		return &FetchResult{
			Body:         body,
			StatusCode:   res.StatusCode,
			ContentType:  res.Header.Get("Content-Type"),
			FinalURL:     res.Request.URL.String(),
			ResponseTime: elapsed,
		}, nil

	case res.StatusCode == http.StatusTooManyRequests:
		f.pacer.SetRetryAfter(rawURL, parseRetryAfter(res.Header.Get("Retry-After")))
		f.pacer.Release(rawURL, OutcomeServerError)
		return nil, &HTTPError{StatusCode: res.StatusCode, URL: rawURL}

	case res.StatusCode >= 500:
		f.pacer.Release(rawURL, OutcomeServerError)
		return nil, &HTTPError{StatusCode: res.StatusCode, URL: rawURL}

	default:
		f.pacer.Release(rawURL, OutcomeClientError)
		return nil, &HTTPError{StatusCode: res.StatusCode, URL: rawURL}
	}
}

func (f *Fetcher) get(ctx context.Context, rawURL, language string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage(language))
	req.Header.Set("DNT", "1")

	return f.client.Do(req)
}

// acceptLanguage builds the Accept-Language header for a site locale.
func acceptLanguage(language string) string {
	if language == "" || language == "en" {
		return "en-US,en;q=0.9"
	}
	return language + ",en;q=0.8"
}

// parseRetryAfter reads a Retry-After header as delay seconds or HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}
