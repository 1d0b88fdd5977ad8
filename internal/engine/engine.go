package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the edit inactivity window before an automatic save.
const DefaultDebounce = 1500 * time.Millisecond

// DefaultRetryDelay is the fixed delay between failed attempts. There is
// no backoff and no attempt cap; retries continue while the session is open.
const DefaultRetryDelay = 5 * time.Second

// Engine is the single-writer autosave event loop.
//
// The engine processes events (edits, timer firings, save outcomes) in FIFO
// order and drives the session's save state machine.
//
// CRITICAL: All mutations happen in the single-writer Run loop goroutine.
// Public API methods enqueue events for processing there.
//
// Thread-safety model:
//   - OpenSession/UpdateField/RequestImmediateSave/CloseSession: safe from
//     any goroutine
//   - Status/LastError/OnStatusChange: safe from any goroutine (read a
//     mutex-guarded mirror maintained by the loop)
//   - Run(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - At most one Persist call in flight (structural: only the Saving
//     state's issueSave spawns one, and Saving cannot re-enter)
//   - Timer firings and save results from a previous session generation
//     are discarded
type Engine struct {
	port     Port
	sched    Scheduler
	clock    *Clock
	tokens   TokenGenerator
	logger   *slog.Logger
	queue    *eventQueue
	debounce time.Duration
	retry    time.Duration

	// Loop-owned state. Touched only from the Run goroutine.
	runCtx      context.Context
	sess        *session
	gen         uint64
	pendingOpen *event

	// Mirror of the observable state for concurrent readers.
	mu        sync.Mutex
	status    Status
	lastErr   error
	listeners []func(StatusChange)
}

// Option configures engine parameters.
type Option func(*Engine)

// WithDebounce sets the edit inactivity window.
//
// Default: 1.5s (DefaultDebounce)
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithRetryDelay sets the fixed delay between failed save attempts.
//
// Default: 5s (DefaultRetryDelay)
func WithRetryDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.retry = d
	}
}

// WithScheduler substitutes the timer scheduler. Tests and the scenario
// harness pass a virtual-time scheduler here.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithTokens substitutes the attempt token generator. Tests pass a
// FixedGenerator for deterministic traces.
func WithTokens(g TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets a pre-configured logical clock, letting a host resume
// seq numbering across engine restarts.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine that persists through the given port.
func New(port Port, opts ...Option) *Engine {
	e := &Engine{
		port:     port,
		sched:    NewWallScheduler(),
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
		logger:   slog.Default(),
		queue:    newEventQueue(),
		debounce: DefaultDebounce,
		retry:    DefaultRetryDelay,
		status:   StatusClean,
	}

	// Apply options
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// OpenSession begins editing a record and blocks until the loop has the
// session ready. recordID may be empty, in which case a fresh ID is minted
// and the session starts from an empty persisted snapshot (new record).
//
// When initial is non-nil it seeds both the working copy and the persisted
// snapshot (the host already has the record in hand). When initial is nil
// the engine loads the snapshot through the port.
//
// If a session is already open it is closed first: pending timers are
// cancelled, a final flush is attempted, and only then does the new
// session open. The old session's flush outcome is logged, not returned.
func (e *Engine) OpenSession(ctx context.Context, recordID string, initial map[string]any) error {
	ev := event{
		kind:     evOpen,
		ctx:      ctx,
		recordID: recordID,
		reply:    make(chan error, 1),
	}
	if initial != nil {
		m, err := mapFromHost(initial)
		if err != nil {
			return err
		}
		ev.initial = m
	}
	if !e.queue.Enqueue(ev) {
		return ErrStopped
	}
	select {
	case err := <-ev.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateField records an edit to one field of the working copy.
// value accepts string, bool, integer kinds, []string, []any of strings,
// or a field.Value. Fire-and-forget: the edit is applied by the loop in
// arrival order. Edits without an open session are dropped with a warning.
func (e *Engine) UpdateField(name string, value any) error {
	v, err := valueFromHost(value)
	if err != nil {
		return err
	}
	if !e.queue.Enqueue(event{kind: evEdit, name: name, value: v}) {
		return ErrStopped
	}
	return nil
}

// RequestImmediateSave bypasses the debounce (explicit save action,
// editor blur, visibility loss). A no-op when the session is Clean or an
// attempt is already in flight.
func (e *Engine) RequestImmediateSave() error {
	if !e.queue.Enqueue(event{kind: evSaveNow}) {
		return ErrStopped
	}
	return nil
}

// CloseSession ends the open session with exactly one best-effort flush
// of unsaved changes, then tears the session down regardless of the flush
// outcome. The flush error (if any) is returned so hosts can warn the
// user. Closing with no open session is a no-op.
func (e *Engine) CloseSession(ctx context.Context) error {
	ev := event{
		kind:  evClose,
		ctx:   ctx,
		reply: make(chan error, 1),
	}
	if !e.queue.Enqueue(ev) {
		return ErrStopped
	}
	select {
	case err := <-ev.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current save status. Safe from any goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastError returns the most recent save failure, or nil when the last
// attempt succeeded or none has run. Safe from any goroutine.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// OnStatusChange registers a listener for status transitions. Listeners
// run synchronously on the loop goroutine and must not block; hand off to
// a channel for anything slow. Register before Run for a complete stream.
func (e *Engine) OnStatusChange(fn func(StatusChange)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Clock returns the engine's logical clock. Traced ports share it so port
// calls and status changes interleave on one seq axis.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the current number of pending events. The shutdown
// path logs it when a backlog is discarded; tests use it to observe
// loop pressure.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Quiesce blocks until the loop has drained every event enqueued before
// the call and reports whether the session is still busy (an attempt in
// flight or a close in progress). Tests and the virtual-time harness use
// it to reach a stable point between steps.
func (e *Engine) Quiesce(ctx context.Context) (busy bool, err error) {
	ev := event{kind: evProbe, probe: make(chan bool, 1)}
	if !e.queue.Enqueue(ev) {
		return false, ErrStopped
	}
	select {
	case b := <-ev.probe:
		return b, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
// All state transitions, timer arming, and snapshot swaps happen in this
// goroutine for deterministic behavior.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	e.logger.Info("engine starting")

	defer e.shutdown()

	for {
		// Try non-blocking dequeue first
		ev, ok := e.queue.TryDequeue()
		if ok {
			e.processEvent(ev)
			continue
		}

		// No event ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// Signal received - loop back to TryDequeue.
			// The signal channel closes when the queue is closed,
			// which makes this case fire immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which causes Run() to drain and return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// shutdown runs on loop exit: cancels timers, fails any waiters, and
// drains the queue so no OpenSession/CloseSession caller blocks forever.
func (e *Engine) shutdown() {
	if e.sess != nil {
		e.sess.cancelTimers()
		if e.sess.closeReply != nil {
			e.sess.closeReply <- ErrStopped
		}
		e.sess = nil
	}
	if e.pendingOpen != nil {
		e.pendingOpen.reply <- ErrStopped
		e.pendingOpen = nil
	}
	if n := e.QueueLen(); n > 0 {
		e.logger.Debug("discarding pending events", "count", n)
	}
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		switch {
		case ev.reply != nil:
			ev.reply <- ErrStopped
		case ev.probe != nil:
			ev.probe <- false
		}
	}
}

// processEvent routes an event to the appropriate handler.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) processEvent(ev event) {
	switch ev.kind {
	case evOpen:
		e.handleOpen(ev)
	case evEdit:
		e.handleEdit(ev)
	case evSaveNow:
		e.handleSaveNow()
	case evDebounceFired:
		e.handleDebounceFired(ev)
	case evRetryFired:
		e.handleRetryFired(ev)
	case evSaveResult:
		e.handleSaveResult(ev)
	case evClose:
		e.handleClose(ev)
	case evProbe:
		ev.probe <- e.sess != nil && (e.sess.inflight != "" || e.sess.closeReply != nil)
	default:
		e.logger.Error("unknown event kind", "kind", int(ev.kind))
	}
}

// setStatus records a transition, updates the concurrent mirror, and
// notifies listeners. Loop goroutine only.
func (e *Engine) setStatus(s Status, err error) {
	seq := e.clock.Next()

	e.mu.Lock()
	e.status = s
	e.lastErr = err
	listeners := e.listeners
	e.mu.Unlock()

	change := StatusChange{Seq: seq, Status: s, Err: err}
	for _, fn := range listeners {
		fn(change)
	}
}

// resetMirror clears the mirror after teardown without notifying
// listeners; the session's final transition was already delivered.
func (e *Engine) resetMirror() {
	e.mu.Lock()
	e.status = StatusClean
	e.lastErr = nil
	e.mu.Unlock()
}
