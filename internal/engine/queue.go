package engine

import (
	"context"
	"sync"

	"github.com/roach88/inkwell/internal/field"
)

// eventKind routes an event to its loop handler.
type eventKind int

const (
	evOpen eventKind = iota + 1
	evEdit
	evSaveNow
	evDebounceFired
	evRetryFired
	evSaveResult
	evClose
	evProbe
)

func (k eventKind) String() string {
	switch k {
	case evOpen:
		return "open"
	case evEdit:
		return "edit"
	case evSaveNow:
		return "save_now"
	case evDebounceFired:
		return "debounce_fired"
	case evRetryFired:
		return "retry_fired"
	case evSaveResult:
		return "save_result"
	case evClose:
		return "close"
	case evProbe:
		return "probe"
	default:
		return "unknown"
	}
}

// event is the single message type flowing through the loop. Only the
// fields relevant to the kind are populated.
type event struct {
	kind eventKind

	// evOpen / evClose
	ctx     context.Context
	reply   chan error
	initial field.Map // evOpen: nil means load through the port

	// evOpen / shared
	recordID string

	// evEdit
	name  string
	value field.Value

	// evDebounceFired / evRetryFired / evSaveResult
	gen   uint64
	nonce uint64

	// evSaveResult
	token string
	snap  Snapshot
	err   error

	// evProbe
	probe chan bool
}

// eventQueue is a thread-safe FIFO queue for loop events.
//
// The queue is unbounded so API callers, timer callbacks, and persist
// goroutines can enqueue without ever blocking on the loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 64), // Pre-allocate for typical workloads
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]

	// CRITICAL: Nil out the slot to allow GC to collect the event's pointers
	// (ctx, value, reply channels). Without this, the underlying array retains
	// references until reallocated, causing memory leaks under steady load.
	q.events[0] = event{}

	// Fix memory retention: reset slice when empty
	if len(q.events) == 1 {
		// Last element - reset to empty slice with original capacity
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return // Already closed
	}

	q.closed = true
	close(q.signal) // Wakes all waiters
}
