package engine

import (
	"context"
	"fmt"

	"github.com/roach88/inkwell/internal/field"
)

// session is the loop-owned state for one open record.
//
// gen stamps every timer firing and save result issued on this session's
// behalf; an event carrying a stale gen belongs to a record the user has
// already left and is discarded.
type session struct {
	recordID string
	gen      uint64
	status   Status

	working   field.Map
	persisted Snapshot

	// inflight is the token of the outstanding persist attempt, or "".
	inflight       string
	editedInFlight bool
	lastErr        error

	debounceTimer Timer
	debounceNonce uint64
	retryTimer    Timer
	retryNonce    uint64

	// Close sequencing. closeReply non-nil means teardown has started.
	closeReply   chan error
	closeCtx     context.Context
	closeFlushed bool
}

func (s *session) dirty() bool {
	return field.Dirty(s.working, s.persisted.Fields)
}

func (s *session) cancelDebounce() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	// Invalidate a firing that raced the Stop
	s.debounceNonce++
}

func (s *session) cancelRetry() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.retryNonce++
}

func (s *session) cancelTimers() {
	s.cancelDebounce()
	s.cancelRetry()
}

// transition moves the session to a new status and publishes it.
func (e *Engine) transition(s Status, err error) {
	prev := e.sess.status
	e.sess.status = s
	e.setStatus(s, err)
	e.logger.Debug("status transition",
		"record", e.sess.recordID,
		"from", prev,
		"to", s,
	)
}

// handleOpen starts a session, first closing any session already open.
func (e *Engine) handleOpen(ev event) {
	if e.sess == nil {
		e.openSession(ev)
		return
	}

	if e.pendingOpen != nil {
		ev.reply <- fmt.Errorf("open session: another open is already pending")
		return
	}

	// Session switch: run the close sequence for the old record, then
	// open the new one. The old session's flush outcome is logged by
	// finishClose, not surfaced to this caller.
	e.logger.Info("session switch",
		"from", e.sess.recordID,
		"to", ev.recordID,
	)
	e.pendingOpen = &ev
	if e.sess.closeReply == nil {
		e.beginClose(ev.ctx, make(chan error, 1))
	}
}

// openSession establishes the working copy and persisted snapshot.
// Called only when no session is open, so the synchronous port load
// cannot delay any other session's events.
func (e *Engine) openSession(ev event) {
	e.gen++

	recordID := ev.recordID
	if recordID == "" {
		recordID = e.tokens.Generate()
	}

	var persisted Snapshot
	switch {
	case ev.initial != nil:
		persisted = Snapshot{Fields: ev.initial.Clone()}
	case ev.recordID != "":
		snap, ok, err := e.port.Load(ev.ctx, recordID)
		if err != nil {
			e.gen++ // burn the generation, nothing was started
			ev.reply <- fmt.Errorf("open session: load record %s: %w", recordID, err)
			return
		}
		if ok {
			persisted = snap.Clone()
		} else {
			persisted = Snapshot{Fields: field.Map{}}
		}
	default:
		// New record: starts empty, first divergent edit makes it Dirty.
		persisted = Snapshot{Fields: field.Map{}}
	}

	e.sess = &session{
		recordID:  recordID,
		gen:       e.gen,
		status:    StatusClean,
		working:   persisted.Fields.Clone(),
		persisted: persisted,
	}
	e.setStatus(StatusClean, nil)

	e.logger.Info("session opened",
		"record", recordID,
		"revision", persisted.Revision,
		"fields", len(persisted.Fields),
	)
	ev.reply <- nil
}

// handleEdit applies one field write to the working copy and re-evaluates
// dirtiness. Dirtiness is semantic: a revert back to the persisted values,
// a tag reorder, or writing empty over missing does not count.
func (e *Engine) handleEdit(ev event) {
	if e.sess == nil {
		e.logger.Warn("edit dropped: no open session", "field", ev.name)
		return
	}
	if e.sess.closeReply != nil {
		e.logger.Warn("edit dropped: session closing",
			"record", e.sess.recordID,
			"field", ev.name,
		)
		return
	}

	e.sess.working[ev.name] = ev.value

	switch e.sess.status {
	case StatusClean:
		if e.sess.dirty() {
			e.transition(StatusDirty, nil)
			e.armDebounce()
		}

	case StatusDirty:
		if e.sess.dirty() {
			// Inactivity window restarts on every keystroke
			e.armDebounce()
		} else {
			// Reverted to the persisted snapshot
			e.sess.cancelDebounce()
			e.transition(StatusClean, nil)
		}

	case StatusSaving:
		// The in-flight attempt carries an older copy. Remember that
		// more arrived so success does not report a false Clean.
		e.sess.editedInFlight = true

	case StatusError:
		// Retry timer stays armed; the next attempt reads the latest
		// working copy, so nothing to do here.
	}
}

// handleSaveNow bypasses the debounce. No-op when Clean (nothing to save)
// or Saving (single-flight holds; the mid-flight edit path covers it).
func (e *Engine) handleSaveNow() {
	if e.sess == nil || e.sess.closeReply != nil {
		return
	}
	switch e.sess.status {
	case StatusDirty, StatusError:
		e.sess.cancelTimers()
		e.issueSave(e.runCtx)
	case StatusClean, StatusSaving:
	}
}

// armDebounce (re)schedules the inactivity timer.
func (e *Engine) armDebounce() {
	s := e.sess
	s.cancelDebounce()
	gen, nonce := s.gen, s.debounceNonce
	s.debounceTimer = e.sched.AfterFunc(e.debounce, func() {
		e.queue.Enqueue(event{kind: evDebounceFired, gen: gen, nonce: nonce})
	})
}

// armRetry schedules the fixed-delay retry after a failure.
func (e *Engine) armRetry() {
	s := e.sess
	s.cancelRetry()
	gen, nonce := s.gen, s.retryNonce
	s.retryTimer = e.sched.AfterFunc(e.retry, func() {
		e.queue.Enqueue(event{kind: evRetryFired, gen: gen, nonce: nonce})
	})
}

func (e *Engine) handleDebounceFired(ev event) {
	s := e.sess
	if s == nil || ev.gen != s.gen || ev.nonce != s.debounceNonce {
		return // stale firing
	}
	s.debounceTimer = nil
	if s.status != StatusDirty {
		return
	}
	if !s.dirty() {
		// Working copy drifted back to the snapshot before the timer fired
		e.transition(StatusClean, nil)
		return
	}
	e.issueSave(e.runCtx)
}

func (e *Engine) handleRetryFired(ev event) {
	s := e.sess
	if s == nil || ev.gen != s.gen || ev.nonce != s.retryNonce {
		return // stale firing
	}
	s.retryTimer = nil
	if s.status != StatusError {
		return
	}
	if !s.dirty() {
		// User reverted while waiting; nothing left to retry
		e.transition(StatusClean, nil)
		return
	}
	e.issueSave(e.runCtx)
}

// issueSave snapshots the working copy, enters Saving, and spawns the
// persist attempt. The attempt goroutine never touches engine state; it
// reports back through the queue.
func (e *Engine) issueSave(ctx context.Context) {
	s := e.sess
	token := e.tokens.Generate()
	fields := s.working.Clone()
	s.inflight = token
	s.editedInFlight = false
	e.transition(StatusSaving, nil)

	e.logger.Info("save attempt issued",
		"record", s.recordID,
		"attempt", token,
		"fields", len(fields),
	)

	gen, recordID := s.gen, s.recordID
	go func() {
		snap, err := e.port.Persist(ctx, recordID, fields)
		e.queue.Enqueue(event{
			kind:  evSaveResult,
			gen:   gen,
			token: token,
			snap:  snap,
			err:   err,
		})
	}()
}

// handleSaveResult settles the in-flight attempt.
func (e *Engine) handleSaveResult(ev event) {
	s := e.sess
	if s == nil || ev.gen != s.gen {
		return // session already gone
	}
	if s.inflight == "" || s.inflight != ev.token {
		return // not the attempt we are waiting on
	}
	s.inflight = ""

	if ev.err != nil {
		serr := classify(ev.err, s.recordID, ev.token)
		s.lastErr = serr
		e.logger.Warn("save attempt failed",
			"record", s.recordID,
			"attempt", ev.token,
			"code", string(serr.Code),
			"error", serr.Err,
		)
		e.transition(StatusError, serr)
		if s.closeReply == nil {
			e.armRetry()
		} else {
			e.closeProgress()
		}
		return
	}

	// Adopt the confirmed snapshot: server-side normalization becomes the
	// new comparison baseline.
	s.persisted = ev.snap.Clone()
	s.lastErr = nil
	e.logger.Info("save attempt succeeded",
		"record", s.recordID,
		"attempt", ev.token,
		"revision", ev.snap.Revision,
	)

	if s.editedInFlight && s.dirty() {
		// Keystrokes landed while the attempt ran; start a fresh cycle
		e.transition(StatusDirty, nil)
		if s.closeReply == nil {
			e.armDebounce()
		}
	} else {
		e.transition(StatusClean, nil)
	}

	if s.closeReply != nil {
		e.closeProgress()
	}
}

// handleClose starts the teardown sequence.
func (e *Engine) handleClose(ev event) {
	if e.sess == nil {
		ev.reply <- nil
		return
	}
	if e.sess.closeReply != nil {
		ev.reply <- ErrCloseInProgress
		return
	}
	e.beginClose(ev.ctx, ev.reply)
}

func (e *Engine) beginClose(ctx context.Context, reply chan error) {
	s := e.sess
	s.closeReply = reply
	s.closeCtx = ctx
	s.cancelTimers()
	e.logger.Info("session closing",
		"record", s.recordID,
		"status", s.status,
	)
	e.closeProgress()
}

// closeProgress advances the close sequence. Invoked from handleClose and
// again whenever a save result settles during teardown. The sequence is:
// wait out any in-flight attempt, issue at most ONE flush if unsaved work
// remains, then tear down whatever the outcome.
func (e *Engine) closeProgress() {
	s := e.sess
	if s.inflight != "" {
		return // settle the outstanding attempt first
	}

	if !s.closeFlushed && s.dirty() {
		s.closeFlushed = true
		e.issueSave(s.closeCtx)
		return
	}

	var err error
	if s.status == StatusError && s.dirty() {
		// The one flush (or the attempt we inherited) failed; the caller
		// learns about it, but the session closes regardless.
		err = s.lastErr
	}
	e.finishClose(err)
}

func (e *Engine) finishClose(err error) {
	s := e.sess
	reply := s.closeReply
	s.cancelTimers()
	e.sess = nil
	e.resetMirror()

	if err != nil {
		e.logger.Warn("session closed with unsaved changes",
			"record", s.recordID,
			"error", err,
		)
	} else {
		e.logger.Info("session closed", "record", s.recordID)
	}

	reply <- err

	if e.pendingOpen != nil {
		next := e.pendingOpen
		e.pendingOpen = nil
		e.openSession(*next)
	}
}

// mapFromHost converts a host-supplied initial field map.
func mapFromHost(in map[string]any) (field.Map, error) {
	m, err := field.MapFromAny(in)
	if err != nil {
		return nil, fmt.Errorf("initial fields: %w", err)
	}
	return m, nil
}

// valueFromHost converts a host-supplied edit value. Accepts everything
// field.FromAny does plus []string (the common tag-list shape).
func valueFromHost(v any) (field.Value, error) {
	if ss, ok := v.([]string); ok {
		list := make(field.List, len(ss))
		for i, s := range ss {
			list[i] = field.String(s)
		}
		return list, nil
	}
	fv, err := field.FromAny(v)
	if err != nil {
		return nil, fmt.Errorf("update field: %w", err)
	}
	return fv, nil
}
