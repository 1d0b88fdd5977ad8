package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/inkwell/internal/engine"
	"github.com/roach88/inkwell/internal/field"
	"github.com/roach88/inkwell/internal/testutil"
)

// epoch is the virtual-time origin of every scenario run. Trace offsets
// (at_ms) are measured from here.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness executes scenarios against a real engine on virtual time.
//
// Each run builds a fresh engine wired to a FakeScheduler and a
// ScriptedPort, drives it through the scenario's steps, and collects
// status transitions and port calls into a single seq-ordered trace.
// Nothing in the engine is stubbed; the scenario exercises the same
// loop, timers, and save state machine a host would.
type Harness struct {
	logger *slog.Logger
}

// Option configures harness behavior.
type Option func(*Harness)

// WithLogger sets the logger passed to the engines the harness builds.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// New creates a scenario harness. By default engine logs are discarded
// so scenario output stays readable.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario and returns its result. A returned error means
// the run itself broke (step failure, engine refused a call); assertion
// failures land in Result.Errors with Pass set to false.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	sched := testutil.NewFakeScheduler(epoch)

	outcomes := make([]testutil.Outcome, len(scenario.Port.Outcomes))
	for i, o := range scenario.Port.Outcomes {
		outcomes[i] = testutil.Outcome{
			Fail:      o.Fail,
			Permanent: o.Permanent,
			Message:   o.Message,
		}
	}
	port := testutil.NewScriptedPort(outcomes...)
	port.Sched = sched

	eng := engine.New(port,
		engine.WithScheduler(sched),
		engine.WithTokens(testutil.NewSequenceTokens("attempt")),
		engine.WithLogger(h.logger),
	)
	// Port calls and status changes share one seq axis.
	port.Clock = eng.Clock()

	record := scenario.Record
	if record == "" {
		record = "record-1"
	}

	if scenario.Seed != nil {
		m, err := field.MapFromAny(scenario.Seed)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: bad seed: %w", scenario.Name, err)
		}
		port.Seed(record, m)
	}

	// Status listener runs synchronously on the loop goroutine; it only
	// appends under a lock.
	var (
		mu       sync.Mutex
		statuses []TraceEvent
	)
	eng.OnStatusChange(func(c engine.StatusChange) {
		ev := TraceEvent{
			Type:   "status",
			Seq:    c.Seq,
			AtMS:   sched.Now().Sub(epoch).Milliseconds(),
			Status: c.Status.String(),
		}
		if c.Err != nil {
			ev.Error = c.Err.Error()
		}
		mu.Lock()
		statuses = append(statuses, ev)
		mu.Unlock()
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(runCtx)
	}()
	defer func() {
		eng.Stop()
		<-done
	}()

	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, eng, sched, record, &step, result); err != nil {
			return nil, fmt.Errorf("scenario %s: steps[%d]: %w", scenario.Name, i, err)
		}
		if step.Open != nil && step.Open.Record != "" {
			record = step.Open.Record
		}
	}
	if err := testutil.WaitIdle(ctx, eng); err != nil {
		return nil, fmt.Errorf("scenario %s: settle: %w", scenario.Name, err)
	}

	result.FinalStatus = eng.Status()
	result.LastError = eng.LastError()
	result.SaveCount = port.PersistCount()
	if snap, ok := port.Stored(record); ok {
		result.Stored = snap.Fields
	}

	mu.Lock()
	trace := append([]TraceEvent(nil), statuses...)
	mu.Unlock()
	for _, c := range port.Calls() {
		trace = append(trace, TraceEvent{
			Type:   c.Op,
			Seq:    c.Seq,
			AtMS:   c.At.Sub(epoch).Milliseconds(),
			Record: c.RecordID,
			Failed: c.Failed,
		})
	}
	sort.Slice(trace, func(i, j int) bool { return trace[i].Seq < trace[j].Seq })
	result.Trace = trace

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep executes one scenario step and settles the engine afterwards,
// so the next step observes a stable state.
func (h *Harness) runStep(ctx context.Context, eng *engine.Engine, sched *testutil.FakeScheduler, record string, step *Step, result *Result) error {
	switch {
	case step.Open != nil:
		rec := step.Open.Record
		if rec == "" {
			rec = record
		}
		if err := eng.OpenSession(ctx, rec, step.Open.Initial); err != nil {
			return fmt.Errorf("open %s: %w", rec, err)
		}

	case step.Edit != nil:
		if err := eng.UpdateField(step.Edit.Field, step.Edit.Value); err != nil {
			return fmt.Errorf("edit %s: %w", step.Edit.Field, err)
		}

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("bad advance duration %q: %w", step.Advance, err)
		}
		return testutil.AdvanceBy(ctx, eng, sched, d)

	case step.SaveNow:
		if err := eng.RequestImmediateSave(); err != nil {
			return fmt.Errorf("save_now: %w", err)
		}

	case step.Close:
		result.CloseErr = eng.CloseSession(ctx)

	default:
		return fmt.Errorf("step has no directive")
	}
	return testutil.WaitIdle(ctx, eng)
}
