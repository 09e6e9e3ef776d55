// Package scheduler drives periodic crawl, cleanup and sync work as
// discrete jobs with status and bounded history. Cron entries feed an
// in-memory priority queue drained by a single worker routine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
)

// Runner executes one job. The cmd layer wires the orchestrator paths
// behind this seam.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) (*domain.RunResult, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job *domain.Job) (*domain.RunResult, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, job *domain.Job) (*domain.RunResult, error) {
	return f(ctx, job)
}

// Config tunes the scheduler.
type Config struct {
	UpdateTime    string // HH:MM, daily full crawl
	CleanupDay    string // weekday name
	CleanupTime   string // HH:MM
	CleanupDays   int
	CheckInterval time.Duration
	HistorySize   int
}

// Scheduler owns the cron entries, the job queue and the worker loop.
type Scheduler struct {
	cfg     Config
	runner  Runner
	clock   Clock
	metrics *metrics.Metrics
	logger  logger.Interface
	cron    *cron.Cron

	mu      sync.Mutex
	queue   *jobQueue
	history *history
	running *domain.Job

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New creates a scheduler. A nil clock uses the system clock.
func New(cfg Config, runner Runner, clock Clock, m *metrics.Metrics, log logger.Interface) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}

	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		clock:   clock,
		metrics: m,
		logger:  log,
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		queue:   newJobQueue(),
		history: newHistory(cfg.HistorySize),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start registers the named schedules and starts the worker loop.
func (s *Scheduler) Start() error {
	if s.cfg.UpdateTime != "" {
		spec, err := dailySpec(s.cfg.UpdateTime)
		if err != nil {
			return fmt.Errorf("scheduler: update schedule: %w", err)
		}
		if _, addErr := s.cron.AddFunc(spec, func() {
			_, _ = s.RunNow(domain.JobTypeFullCrawl, nil, 0)
		}); addErr != nil {
			return fmt.Errorf("scheduler: add update entry: %w", addErr)
		}
	}

	if s.cfg.CleanupDay != "" && s.cfg.CleanupTime != "" {
		spec, err := weeklySpec(s.cfg.CleanupDay, s.cfg.CleanupTime)
		if err != nil {
			return fmt.Errorf("scheduler: cleanup schedule: %w", err)
		}
		if _, addErr := s.cron.AddFunc(spec, func() {
			params := map[string]string{"days_old": fmt.Sprintf("%d", s.cfg.CleanupDays)}
			_, _ = s.RunNow(domain.JobTypeCleanup, params, 0)
		}); addErr != nil {
			return fmt.Errorf("scheduler: add cleanup entry: %w", addErr)
		}
	}

	s.cron.Start()
	go s.loop()

	s.logger.Info("scheduler started",
		"update_time", s.cfg.UpdateTime,
		"cleanup", s.cfg.CleanupDay+" "+s.cfg.CleanupTime)

	return nil
}

// Stop halts the cron entries and waits for the worker to finish the job
// in flight. The context bounds the wait.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	close(s.stop)

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// RunNow enqueues a job immediately and returns its id.
func (s *Scheduler) RunNow(jobType string, params map[string]string, priority int) (string, error) {
	switch jobType {
	case domain.JobTypeDomainCrawl, domain.JobTypeFullCrawl,
		domain.JobTypeCleanup, domain.JobTypeSync, domain.JobTypeRefresh:
	default:
		return "", fmt.Errorf("scheduler: unknown job type %q", jobType)
	}

	job := &domain.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Params:      params,
		Priority:    priority,
		ScheduledAt: s.clock.Now(),
		Status:      domain.JobStatusScheduled,
	}

	s.mu.Lock()
	s.queue.enqueue(job)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.logger.Info("job enqueued", "job_id", job.ID, "type", jobType, "priority", priority)
	return job.ID, nil
}

// History returns finished jobs, newest first.
func (s *Scheduler) History() []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.list()
}

// Running returns the job currently in flight, or nil.
func (s *Scheduler) Running() *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// QueueDepth returns the number of queued jobs.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// loop is the single worker routine draining the queue.
func (s *Scheduler) loop() {
	defer close(s.done)

	for {
		job := s.next()
		if job != nil {
			s.execute(job)
			continue
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-s.clock.After(s.cfg.CheckInterval):
		}
	}
}

func (s *Scheduler) next() *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.dequeue()
}

// execute runs one job to completion and records it in the history.
// Stopping the scheduler cancels the job's context so in-flight I/O
// fails gracefully.
func (s *Scheduler) execute(job *domain.Job) {
	started := s.clock.Now()
	job.StartedAt = &started
	job.Status = domain.JobStatusRunning

	s.mu.Lock()
	s.running = job
	s.mu.Unlock()

	s.metrics.JobsRunning.Inc()
	s.logger.Info("job started", "job_id", job.ID, "type", job.Type)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := s.runner.Run(ctx, job)
	cancel()

	finished := s.clock.Now()
	job.FinishedAt = &finished
	job.Result = result

	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		s.logger.Error("job failed", "job_id", job.ID, "type", job.Type, "error", err)
	} else {
		job.Status = domain.JobStatusCompleted
		s.logger.Info("job completed",
			"job_id", job.ID, "type", job.Type,
			"duration", finished.Sub(started).String())
	}

	s.metrics.JobsRunning.Dec()
	s.metrics.JobsExecutedTotal.WithLabelValues(job.Type, job.Status).Inc()
	s.metrics.JobDurationSeconds.WithLabelValues(job.Type).Observe(finished.Sub(started).Seconds())

	s.mu.Lock()
	s.running = nil
	s.history.add(job)
	s.mu.Unlock()
}

// dailySpec converts "HH:MM" into a daily cron spec.
func dailySpec(at string) (string, error) {
	hour, minute, err := parseClockTime(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// weeklySpec converts a weekday name plus "HH:MM" into a weekly cron spec.
func weeklySpec(day, at string) (string, error) {
	hour, minute, err := parseClockTime(at)
	if err != nil {
		return "", err
	}

	day = strings.ToLower(strings.TrimSpace(day))
	if len(day) < 3 {
		return "", fmt.Errorf("invalid weekday %q", day)
	}

	switch day[:3] {
	case "sun", "mon", "tue", "wed", "thu", "fri", "sat":
	default:
		return "", fmt.Errorf("invalid weekday %q", day)
	}

	return fmt.Sprintf("%d %d * * %s", minute, hour, strings.ToUpper(day[:3])), nil
}

// parseClockTime parses "HH:MM".
func parseClockTime(at string) (hour, minute int, err error) {
	parsed, parseErr := time.Parse("15:04", strings.TrimSpace(at))
	if parseErr != nil {
		return 0, 0, errors.New("time must be HH:MM")
	}
	return parsed.Hour(), parsed.Minute(), nil
}
