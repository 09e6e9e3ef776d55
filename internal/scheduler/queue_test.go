package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/domain"
)

func TestJobQueueOrdersByPriority(t *testing.T) {
	t.Parallel()

	now := time.Now()
	q := newJobQueue()
	q.enqueue(&domain.Job{ID: "low", Priority: 1, ScheduledAt: now})
	q.enqueue(&domain.Job{ID: "high", Priority: 10, ScheduledAt: now})
	q.enqueue(&domain.Job{ID: "mid", Priority: 5, ScheduledAt: now})

	assert.Equal(t, "high", q.dequeue().ID)
	assert.Equal(t, "mid", q.dequeue().ID)
	assert.Equal(t, "low", q.dequeue().ID)
	assert.Nil(t, q.dequeue())
}

func TestJobQueueBreaksTiesByScheduledAt(t *testing.T) {
	t.Parallel()

	now := time.Now()
	q := newJobQueue()
	q.enqueue(&domain.Job{ID: "later", Priority: 5, ScheduledAt: now.Add(time.Minute)})
	q.enqueue(&domain.Job{ID: "earlier", Priority: 5, ScheduledAt: now})

	assert.Equal(t, "earlier", q.dequeue().ID)
	assert.Equal(t, "later", q.dequeue().ID)
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	t.Parallel()

	h := newHistory(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		h.add(&domain.Job{ID: id})
	}

	jobs := h.list()
	require.Len(t, jobs, 3)
	assert.Equal(t, "d", jobs[0].ID)
	assert.Equal(t, "c", jobs[1].ID)
	assert.Equal(t, "b", jobs[2].ID)
}

func TestDailySpec(t *testing.T) {
	t.Parallel()

	spec, err := dailySpec("06:30")
	require.NoError(t, err)
	assert.Equal(t, "30 6 * * *", spec)

	_, err = dailySpec("25:00")
	assert.Error(t, err)

	_, err = dailySpec("six am")
	assert.Error(t, err)
}

func TestWeeklySpec(t *testing.T) {
	t.Parallel()

	spec, err := weeklySpec("Sunday", "03:00")
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * SUN", spec)

	spec, err = weeklySpec("wed", "12:15")
	require.NoError(t, err)
	assert.Equal(t, "15 12 * * WED", spec)

	_, err = weeklySpec("someday", "03:00")
	assert.Error(t, err)

	_, err = weeklySpec("su", "03:00")
	assert.Error(t, err)
}
