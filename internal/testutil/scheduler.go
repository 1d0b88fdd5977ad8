package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/inkwell/internal/engine"
)

// FakeScheduler implements engine.Scheduler on virtual time.
//
// Time never moves on its own; tests advance it explicitly. Timers whose
// deadlines fall inside an advancement fire in deadline order (arming
// order breaks ties), with the scheduler's Now() set to each deadline as
// it fires. This makes debounce and retry chains fully deterministic.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run
// without the internal lock held, so a callback may arm new timers.
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	seq    int
}

type fakeTimer struct {
	sched    *FakeScheduler
	deadline time.Time
	fn       func()
	seq      int
	stopped  bool
	fired    bool
}

// Stop implements engine.Timer.
func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewFakeScheduler creates a scheduler positioned at start.
// Tests typically pass a fixed epoch so trace timestamps are stable.
func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{now: start}
}

// Now returns the current virtual time.
func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc implements engine.Scheduler. A non-positive d fires at the
// current virtual instant on the next advancement.
func (s *FakeScheduler) AfterFunc(d time.Duration, fn func()) engine.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{
		sched:    s,
		deadline: s.now.Add(d),
		fn:       fn,
		seq:      s.seq,
	}
	s.seq++
	s.timers = append(s.timers, t)
	return t
}

// NextDeadline returns the earliest pending deadline, or false when no
// live timer is armed.
func (s *FakeScheduler) NextDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  time.Time
		found bool
	)
	for _, t := range s.timers {
		if t.stopped || t.fired {
			continue
		}
		if !found || t.deadline.Before(best) {
			best = t.deadline
			found = true
		}
	}
	return best, found
}

// AdvanceTo moves virtual time forward to target, firing every due timer
// along the way. Moving backwards is a no-op.
func (s *FakeScheduler) AdvanceTo(target time.Time) {
	for {
		s.mu.Lock()
		due := s.dueLocked(target)
		if due == nil {
			if target.After(s.now) {
				s.now = target
			}
			s.mu.Unlock()
			return
		}
		due.fired = true
		if due.deadline.After(s.now) {
			s.now = due.deadline
		}
		fn := due.fn
		s.mu.Unlock()
		fn()
	}
}

// Advance moves virtual time forward by d.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.Now().Add(d))
}

// dueLocked picks the next timer with deadline <= target, earliest first,
// arming order breaking ties. Compacts dead timers as a side effect.
func (s *FakeScheduler) dueLocked(target time.Time) *fakeTimer {
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.stopped || t.fired {
			continue
		}
		live = append(live, t)
	}
	s.timers = live

	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].deadline.Equal(s.timers[j].deadline) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].deadline.Before(s.timers[j].deadline)
	})

	for _, t := range s.timers {
		if !t.deadline.After(target) {
			return t
		}
	}
	return nil
}
