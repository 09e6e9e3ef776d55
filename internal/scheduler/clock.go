package scheduler

import "time"

// Clock abstracts time for the scheduler so tests can drive the queue
// without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now().UTC() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock. All timestamps are UTC.
func SystemClock() Clock { return systemClock{} }
