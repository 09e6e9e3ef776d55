package scheduler

import "github.com/newsloom/newsloom/internal/domain"

// history is a bounded FIFO of finished jobs, newest first when listed.
type history struct {
	jobs []*domain.Job
	size int
}

func newHistory(size int) *history {
	if size <= 0 {
		size = 100
	}
	return &history{size: size}
}

// add appends a finished job, evicting the oldest entry past the bound.
func (h *history) add(job *domain.Job) {
	h.jobs = append(h.jobs, job)
	if len(h.jobs) > h.size {
		h.jobs = h.jobs[1:]
	}
}

// list returns the history newest first.
func (h *history) list() []*domain.Job {
	out := make([]*domain.Job, 0, len(h.jobs))
	for i := len(h.jobs) - 1; i >= 0; i-- {
		out = append(out, h.jobs[i])
	}
	return out
}
