package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/scheduler"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []*domain.Job
	err  error
}

func (r *recordingRunner) Run(_ context.Context, job *domain.Job) (*domain.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = append(r.jobs, job)
	if r.err != nil {
		return nil, r.err
	}
	return &domain.RunResult{SitesProcessed: 1}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func newTestScheduler(t *testing.T, runner scheduler.Runner) *scheduler.Scheduler {
	t.Helper()

	cfg := scheduler.Config{
		CheckInterval: 10 * time.Millisecond,
		HistorySize:   10,
	}

	s := scheduler.New(cfg, runner, nil, metrics.New(prometheus.NewRegistry()), logger.NewNoop())
	require.NoError(t, s.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	return s
}

func TestRunNowExecutesJob(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	s := newTestScheduler(t, runner)

	id, err := s.RunNow(domain.JobTypeFullCrawl, nil, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return runner.count() == 1 && len(s.History()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	job := s.History()[0]
	assert.Equal(t, id, job.ID)
	assert.Equal(t, domain.JobTypeFullCrawl, job.Type)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.SitesProcessed)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.FinishedAt)
	assert.Empty(t, job.Error)
}

func TestRunNowRecordsFailure(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{err: errors.New("database unavailable")}
	s := newTestScheduler(t, runner)

	_, err := s.RunNow(domain.JobTypeSync, nil, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(s.History()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	job := s.History()[0]
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "database unavailable")
}

func TestRunNowRejectsUnknownJobType(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, &recordingRunner{})

	_, err := s.RunNow("defragment", nil, 0)
	assert.Error(t, err)
	assert.Zero(t, s.QueueDepth())
}

func TestRunNowPassesParams(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	s := newTestScheduler(t, runner)

	_, err := s.RunNow(domain.JobTypeCleanup, map[string]string{"days_old": "30"}, 5)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return runner.count() == 1
	}, 5*time.Second, 10*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, "30", runner.jobs[0].Params["days_old"])
	assert.Equal(t, 5, runner.jobs[0].Priority)
}

func TestStartRejectsMalformedSchedules(t *testing.T) {
	t.Parallel()

	cfg := scheduler.Config{UpdateTime: "not a time"}
	s := scheduler.New(cfg, &recordingRunner{}, nil, metrics.New(prometheus.NewRegistry()), logger.NewNoop())
	assert.Error(t, s.Start())
}

func TestStopWaitsForWorker(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	cfg := scheduler.Config{CheckInterval: 10 * time.Millisecond}
	s := scheduler.New(cfg, runner, nil, metrics.New(prometheus.NewRegistry()), logger.NewNoop())
	require.NoError(t, s.Start())

	_, err := s.RunNow(domain.JobTypeFullCrawl, nil, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return runner.count() == 1
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.Nil(t, s.Running())
}
