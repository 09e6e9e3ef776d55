// Package metrics provides Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the namespace for all pipeline metrics.
const MetricsNamespace = "newsloom"

// Metrics holds all Prometheus metrics for the acquisition pipeline.
type Metrics struct {
	// Discovery and crawl metrics
	LinksDiscoveredTotal *prometheus.CounterVec
	LinksCrawledTotal    *prometheus.CounterVec
	ExtractionsTotal     *prometheus.CounterVec
	FetchDurationSeconds *prometheus.HistogramVec

	// Store metrics
	ArticlesStoredTotal *prometheus.CounterVec
	StoreFailuresTotal  *prometheus.CounterVec
	OrphansDeletedTotal prometheus.Counter

	// Pacer metrics
	RateLimitedTotal  *prometheus.CounterVec
	RobotsDeniedTotal *prometheus.CounterVec

	// Scheduler metrics
	JobsExecutedTotal  *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec
	JobsRunning        prometheus.Gauge
}

// New creates and registers the pipeline metrics. A nil registerer falls
// back to the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		LinksDiscoveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "links_discovered_total",
				Help:      "Total number of new links discovered",
			},
			[]string{"site_id", "strategy"},
		),
		LinksCrawledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "links_crawled_total",
				Help:      "Total number of link crawl attempts",
			},
			[]string{"site_id", "result"},
		),
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "extractions_total",
				Help:      "Total number of extraction outcomes by error kind",
			},
			[]string{"kind"},
		),
		FetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of paced page fetches in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"site_id"},
		),
		ArticlesStoredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "articles_stored_total",
				Help:      "Total number of articles written through both stores",
			},
			[]string{"domain_id"},
		),
		StoreFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "store_failures_total",
				Help:      "Total number of dual-write failures by stage",
			},
			[]string{"stage"},
		),
		OrphansDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "orphans_deleted_total",
				Help:      "Total number of orphan vector objects deleted by the reconciler",
			},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "rate_limited_total",
				Help:      "Total number of 429 responses by host",
			},
			[]string{"host"},
		),
		RobotsDeniedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "robots_denied_total",
				Help:      "Total number of URLs denied by robots.txt",
			},
			[]string{"host"},
		),
		JobsExecutedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "scheduler",
				Name:      "jobs_executed_total",
				Help:      "Total number of scheduler jobs executed",
			},
			[]string{"type", "status"},
		),
		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Duration of scheduler jobs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15),
			},
			[]string{"type"},
		),
		JobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: "scheduler",
				Name:      "jobs_running",
				Help:      "Number of scheduler jobs currently running",
			},
		),
	}
}
