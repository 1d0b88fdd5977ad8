// Package engine implements the inkwell autosave reconciliation engine.
//
// The engine owns one editing session at a time: an in-memory working copy
// of a record's fields, the last persisted snapshot of those fields, and the
// save state machine that decides when to push the working copy through the
// persistence port.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All state mutation happens in the Run() goroutine, fed by a FIFO event
// queue. Public API methods (OpenSession, UpdateField, CloseSession, ...)
// enqueue events from any goroutine; awaitable operations carry a reply
// channel. This gives:
// - A total order over edits, timer firings, and save outcomes
// - Structural single-flight: the Saving state cannot issue a second call
// - No locking around the state machine itself
//
// Timers:
// Debounce (1.5s of edit inactivity) and retry (fixed 5s after failure) are
// scheduled through the Scheduler interface and delivered back as events.
// Every timer event carries the session generation and an arming nonce; a
// firing that outlives its session, or that raced a re-arm, is a no-op.
//
// Persistence:
// Port.Persist runs in a goroutine spawned per attempt so the loop never
// blocks on storage latency. The outcome comes back as an event. On success
// the persisted snapshot is replaced with the port-confirmed one, which
// absorbs any server-side normalization; edits that arrived mid-flight leave
// the session Dirty and start a fresh debounce cycle immediately, so no
// keystroke is ever dropped.
//
// Failure Policy:
// Save failures never propagate as panics or API errors; they surface as
// StatusError plus LastError. While the session stays open, retries repeat
// indefinitely at a fixed delay, for transient and permanent failures alike.
// Session close performs exactly one best-effort flush attempt and then
// tears the session down regardless of the outcome; the flush error is
// returned to the caller so a host can warn about potential data loss.
//
// CRITICAL PATTERNS:
//
// CP-2: Logical Clock
// Every status transition and traced port call is stamped with a monotonic
// seq counter from Clock.Next(). NEVER use wall-clock timestamps for
// ordering.
package engine
