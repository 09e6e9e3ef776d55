package scheduler

import (
	"container/heap"

	"github.com/newsloom/newsloom/internal/domain"
)

// jobQueue is a priority queue of pending jobs: higher priority first,
// earlier scheduling time breaking ties.
type jobQueue struct {
	items []*domain.Job
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	heap.Init(q)
	return q
}

func (q *jobQueue) Len() int { return len(q.items) }

func (q *jobQueue) Less(i, j int) bool {
	if q.items[i].Priority != q.items[j].Priority {
		return q.items[i].Priority > q.items[j].Priority
	}
	return q.items[i].ScheduledAt.Before(q.items[j].ScheduledAt)
}

func (q *jobQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *jobQueue) Push(x any) { q.items = append(q.items, x.(*domain.Job)) }

func (q *jobQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

// enqueue adds a job to the queue.
func (q *jobQueue) enqueue(job *domain.Job) { heap.Push(q, job) }

// dequeue removes and returns the highest-priority job, or nil when empty.
func (q *jobQueue) dequeue() *domain.Job {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*domain.Job)
}
