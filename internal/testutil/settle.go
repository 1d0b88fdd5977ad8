package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/inkwell/internal/engine"
)

// WaitIdle blocks until the engine has drained its queue and no persist
// attempt or close is outstanding.
//
// Each Quiesce call is itself a round trip through the loop, so once the
// in-flight attempt's result lands a subsequent probe observes it. The
// short sleep between probes yields to the persist goroutine.
func WaitIdle(ctx context.Context, e *engine.Engine) error {
	for {
		busy, err := e.Quiesce(ctx)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Microsecond):
		}
	}
}

// AdvanceUntil walks virtual time forward to target, firing each due
// timer and letting the engine fully settle in between. Stepped
// advancement matters: a retry timer is armed only after the failed
// attempt's result is processed, so jumping straight to target would
// skip every follow-on deadline inside the window.
func AdvanceUntil(ctx context.Context, e *engine.Engine, sched *FakeScheduler, target time.Time) error {
	for {
		if err := WaitIdle(ctx, e); err != nil {
			return err
		}
		next, ok := sched.NextDeadline()
		if !ok || next.After(target) {
			break
		}
		sched.AdvanceTo(next)
	}
	sched.AdvanceTo(target)
	return WaitIdle(ctx, e)
}

// AdvanceBy advances virtual time by d with full settling, as AdvanceUntil.
func AdvanceBy(ctx context.Context, e *engine.Engine, sched *FakeScheduler, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("advance by negative duration %v", d)
	}
	return AdvanceUntil(ctx, e, sched, sched.Now().Add(d))
}
