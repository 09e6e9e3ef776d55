package pacer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
)

// delayRelaxFactor shrinks the adaptive delay after each success, bounded
// below by the configured minimum.
const delayRelaxFactor = 0.9

// ErrRobotsForbidden is returned by Acquire when robots.txt denies the URL
// for this crawler identity.
var ErrRobotsForbidden = errors.New("pacer: robots.txt forbids url")

// Outcome classifies a finished request for delay adaptation. Client
// errors other than 429 do not grow the back-off: retrying will not help.
type Outcome int

// Request outcomes.
const (
	OutcomeSuccess Outcome = iota
	OutcomeClientError
	OutcomeServerError
)

// HostOverride carries per-host pacing overrides.
type HostOverride struct {
	RequestsPerSecond float64
	MaxConcurrent     int
}

// Config tunes the pacer.
type Config struct {
	UserAgent         string
	RequestsPerSecond float64
	MaxConcurrent     int
	BackoffFactor     float64
	BackoffCeiling    time.Duration
	RobotsTTL         time.Duration
	RobotsFailureTTL  time.Duration
	Overrides         map[string]HostOverride
}

// HostStats is a point-in-time snapshot of one host's pacing state.
type HostStats struct {
	Host           string
	CurrentDelay   time.Duration
	InFlight       int
	Successes      int64
	Failures       int64
	RateLimitUntil time.Time
}

// Pacer admits outbound requests per host. Host identity is scheme plus
// authority; each host gets an independent limiter, semaphore and back-off.
type Pacer struct {
	cfg     Config
	robots  *RobotsCache
	metrics *metrics.Metrics
	log     logger.Interface

	mu    sync.Mutex
	hosts map[string]*hostState
}

// hostState is the per-host pacing state. All fields are guarded by mu.
type hostState struct {
	mu             sync.Mutex
	limiter        *rate.Limiter
	sem            chan struct{}
	minDelay       time.Duration
	delay          time.Duration
	rateLimitUntil time.Time
	successes      int64
	failures       int64
}

// New creates a Pacer. client is used for robots.txt fetches.
func New(cfg Config, client *http.Client, m *metrics.Metrics, log logger.Interface) *Pacer {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = 5 * time.Minute
	}

	return &Pacer{
		cfg:     cfg,
		robots:  NewRobotsCache(client, cfg.UserAgent, cfg.RobotsTTL, cfg.RobotsFailureTTL),
		metrics: m,
		log:     log,
		hosts:   make(map[string]*hostState),
	}
}

// Acquire blocks until a request slot is available for rawURL's host.
// It returns ErrRobotsForbidden when robots.txt denies the URL, and the
// context error when cancelled while waiting.
func (p *Pacer) Acquire(ctx context.Context, rawURL string) error {
	key, err := hostKey(rawURL)
	if err != nil {
		return err
	}

	allowed, err := p.robots.Allowed(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("pacer: robots check: %w", err)
	}
	if !allowed {
		p.metrics.RobotsDeniedTotal.WithLabelValues(key).Inc()
		return ErrRobotsForbidden
	}

	hs := p.host(key)

	// Concurrency slot first so the delay wait happens inside the bound.
	select {
	case hs.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if waitErr := hs.waitTurn(ctx); waitErr != nil {
		<-hs.sem
		return waitErr
	}

	return nil
}

// Release frees the concurrency slot and adapts the delay based on the
// request outcome.
func (p *Pacer) Release(rawURL string, oc Outcome) {
	key, err := hostKey(rawURL)
	if err != nil {
		return
	}

	hs := p.host(key)

	select {
	case <-hs.sem:
	default:
		// Release without matching Acquire; nothing to free.
	}

	hs.adapt(oc, p.cfg.BackoffFactor, p.cfg.BackoffCeiling)
}

// SetRetryAfter records a 429 Retry-After window: no request to the host
// proceeds before the window elapses.
func (p *Pacer) SetRetryAfter(rawURL string, retryAfter time.Duration) {
	key, err := hostKey(rawURL)
	if err != nil {
		return
	}

	hs := p.host(key)

	hs.mu.Lock()
	until := time.Now().Add(retryAfter)
	if until.After(hs.rateLimitUntil) {
		hs.rateLimitUntil = until
	}
	hs.mu.Unlock()

	p.metrics.RateLimitedTotal.WithLabelValues(key).Inc()
	p.log.Warn("rate limited by host", "host", key, "retry_after", retryAfter)
}

// HostPolicy reports the current inter-request delay and concurrency bound
// for a URL's host, with any configured override applied. Discovery code
// that manages its own request loop derives its pacing from this.
func (p *Pacer) HostPolicy(rawURL string) (time.Duration, int, error) {
	key, err := hostKey(rawURL)
	if err != nil {
		return 0, 0, err
	}

	hs := p.host(key)

	hs.mu.Lock()
	delay := hs.delay
	hs.mu.Unlock()

	return delay, cap(hs.sem), nil
}

// SitemapURLs returns sitemap URLs advertised in the host's robots.txt.
func (p *Pacer) SitemapURLs(ctx context.Context, host string) ([]string, error) {
	return p.robots.SitemapURLs(ctx, host)
}

// Stats returns a snapshot of every known host's pacing state.
func (p *Pacer) Stats() []HostStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]HostStats, 0, len(p.hosts))
	for key, hs := range p.hosts {
		hs.mu.Lock()
		out = append(out, HostStats{
			Host:           key,
			CurrentDelay:   hs.delay,
			InFlight:       len(hs.sem),
			Successes:      hs.successes,
			Failures:       hs.failures,
			RateLimitUntil: hs.rateLimitUntil,
		})
		hs.mu.Unlock()
	}
	return out
}

// host returns the pacing state for a host key, creating it on first use
// with any configured override applied.
func (p *Pacer) host(key string) *hostState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if hs, ok := p.hosts[key]; ok {
		return hs
	}

	rps := p.cfg.RequestsPerSecond
	maxConcurrent := p.cfg.MaxConcurrent
	if ov, ok := p.cfg.Overrides[key]; ok {
		if ov.RequestsPerSecond > 0 {
			rps = ov.RequestsPerSecond
		}
		if ov.MaxConcurrent > 0 {
			maxConcurrent = ov.MaxConcurrent
		}
	}

	minDelay := time.Duration(float64(time.Second) / rps)
	hs := &hostState{
		limiter:  rate.NewLimiter(rate.Every(minDelay), 1),
		sem:      make(chan struct{}, maxConcurrent),
		minDelay: minDelay,
		delay:    minDelay,
	}
	p.hosts[key] = hs
	return hs
}

// waitTurn waits out any rate-limit window and then the limiter's pacing.
func (hs *hostState) waitTurn(ctx context.Context) error {
	for {
		hs.mu.Lock()
		wait := time.Until(hs.rateLimitUntil)
		hs.mu.Unlock()

		if wait <= 0 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return hs.limiter.Wait(ctx)
}

// adapt adjusts the inter-request delay after a finished request. Success
// relaxes toward the minimum; server errors grow the delay multiplicatively
// up to the ceiling; other client errors leave it unchanged.
func (hs *hostState) adapt(oc Outcome, factor float64, ceiling time.Duration) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	switch oc {
	case OutcomeSuccess:
		hs.successes++
		relaxed := time.Duration(float64(hs.delay) * delayRelaxFactor)
		if relaxed < hs.minDelay {
			relaxed = hs.minDelay
		}
		hs.delay = relaxed
	case OutcomeServerError:
		hs.failures++
		grown := time.Duration(float64(hs.delay) * factor)
		if grown > ceiling {
			grown = ceiling
		}
		hs.delay = grown
	case OutcomeClientError:
		hs.failures++
	}

	hs.limiter.SetLimit(rate.Every(hs.delay))
}

// hostKey returns the pacer identity for a URL: scheme plus authority.
func hostKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("pacer: parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("pacer: url %q missing scheme or host", rawURL)
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), nil
}
