package domain

import "time"

// Scheduler job types.
const (
	JobTypeDomainCrawl = "domain_crawl"
	JobTypeFullCrawl   = "full_crawl"
	JobTypeCleanup     = "cleanup"
	JobTypeSync        = "sync"
	JobTypeRefresh     = "refresh"
)

// Scheduler job statuses.
const (
	JobStatusScheduled = "scheduled"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is one unit of scheduled or manually triggered work.
type Job struct {
	ID          string
	Type        string
	Params      map[string]string
	Priority    int
	ScheduledAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Status      string
	Result      *RunResult
	Error       string
}

// RunResult summarises one orchestrator run for operators.
type RunResult struct {
	SitesProcessed    int `json:"sites_processed"`
	LinksDiscovered   int `json:"links_discovered"`
	LinksCrawled      int `json:"links_crawled"`
	ArticlesExtracted int `json:"articles_extracted"`
	Errors            int `json:"errors"`
}

// Add accumulates another result into this one.
func (r *RunResult) Add(other RunResult) {
	r.SitesProcessed += other.SitesProcessed
	r.LinksDiscovered += other.LinksDiscovered
	r.LinksCrawled += other.LinksCrawled
	r.ArticlesExtracted += other.ArticlesExtracted
	r.Errors += other.Errors
}
