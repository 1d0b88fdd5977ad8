package engine

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the cancellation prevented
	// the callback from running; false means the callback already fired or
	// was stopped before.
	Stop() bool
}

// Scheduler abstracts timer scheduling so tests and the scenario harness
// can substitute virtual time. The production implementation delegates to
// the time package.
//
// Callbacks run on an arbitrary goroutine and must not block; the engine's
// callbacks only enqueue an event.
type Scheduler interface {
	// AfterFunc schedules fn to run once after d elapses.
	AfterFunc(d time.Duration, fn func()) Timer

	// Now returns the scheduler's current time. Attempt timestamps and
	// traces use this so virtual-time runs stay deterministic.
	Now() time.Time
}

// wallScheduler is the real-time Scheduler backed by the time package.
type wallScheduler struct{}

// NewWallScheduler returns the production Scheduler.
func NewWallScheduler() Scheduler {
	return wallScheduler{}
}

func (wallScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (wallScheduler) Now() time.Time {
	return time.Now()
}
