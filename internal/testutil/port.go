package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/inkwell/internal/engine"
	"github.com/roach88/inkwell/internal/field"
)

// Outcome scripts the result of one persist call.
type Outcome struct {
	Fail      bool
	Permanent bool
	Message   string
}

// PortCall records one call observed by the ScriptedPort.
type PortCall struct {
	Seq      int64 // logical clock stamp, 0 when no clock attached
	Op       string
	RecordID string
	Fields   field.Map
	At       time.Time
	Failed   bool
}

// ScriptedPort implements engine.Port with per-call scripted outcomes.
//
// Outcomes are consumed in call order; once the script is exhausted every
// call succeeds. Successful persists are retained in memory so Load sees
// them, and an optional Normalize hook models server-side cleanup (the
// returned snapshot is what the engine adopts as its new baseline).
//
// Thread-safety: safe for concurrent use; the engine calls Persist from a
// per-attempt goroutine.
type ScriptedPort struct {
	mu       sync.Mutex
	outcomes []Outcome
	records  map[string]engine.Snapshot
	calls    []PortCall
	revision int

	// Clock, when set, stamps calls on the engine's seq axis.
	Clock *engine.Clock

	// Sched, when set, timestamps calls with virtual time.
	Sched engine.Scheduler

	// Normalize, when set, rewrites the field map before it is stored
	// and returned. Models backend trimming, tag dedup, and the like.
	Normalize func(field.Map) field.Map

	// LoadErr, when set, makes every Load call fail with this error.
	LoadErr error
}

// NewScriptedPort creates a port that plays back the given outcomes.
func NewScriptedPort(outcomes ...Outcome) *ScriptedPort {
	return &ScriptedPort{
		outcomes: outcomes,
		records:  make(map[string]engine.Snapshot),
	}
}

// Seed installs a persisted snapshot for recordID so Load finds it.
func (p *ScriptedPort) Seed(recordID string, fields field.Map) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revision++
	p.records[recordID] = engine.Snapshot{
		Fields:   fields.Clone(),
		Revision: fmt.Sprintf("r%d", p.revision),
	}
}

// Persist implements engine.Port.
func (p *ScriptedPort) Persist(_ context.Context, recordID string, fields field.Map) (engine.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out Outcome
	if len(p.outcomes) > 0 {
		out = p.outcomes[0]
		p.outcomes = p.outcomes[1:]
	}

	call := PortCall{
		Op:       "persist",
		RecordID: recordID,
		Fields:   fields.Clone(),
		Failed:   out.Fail,
	}
	if p.Clock != nil {
		call.Seq = p.Clock.Next()
	}
	if p.Sched != nil {
		call.At = p.Sched.Now()
	}
	p.calls = append(p.calls, call)

	if out.Fail {
		msg := out.Message
		if msg == "" {
			msg = "scripted failure"
		}
		if out.Permanent {
			return engine.Snapshot{}, engine.NewPermanentError(msg, nil)
		}
		return engine.Snapshot{}, engine.NewTransientError(msg, nil)
	}

	stored := fields.Clone()
	if p.Normalize != nil {
		stored = p.Normalize(stored)
	}
	p.revision++
	snap := engine.Snapshot{
		Fields:   stored,
		Revision: fmt.Sprintf("r%d", p.revision),
	}
	if p.Sched != nil {
		snap.PersistedAt = p.Sched.Now()
	}
	p.records[recordID] = snap
	return snap.Clone(), nil
}

// Load implements engine.Port.
func (p *ScriptedPort) Load(_ context.Context, recordID string) (engine.Snapshot, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call := PortCall{Op: "load", RecordID: recordID}
	if p.Clock != nil {
		call.Seq = p.Clock.Next()
	}
	if p.Sched != nil {
		call.At = p.Sched.Now()
	}
	p.calls = append(p.calls, call)

	if p.LoadErr != nil {
		return engine.Snapshot{}, false, p.LoadErr
	}

	snap, ok := p.records[recordID]
	if !ok {
		return engine.Snapshot{}, false, nil
	}
	return snap.Clone(), true, nil
}

// Calls returns a copy of every observed call in order.
func (p *ScriptedPort) Calls() []PortCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PortCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// PersistCount returns how many persist attempts the port has seen.
func (p *ScriptedPort) PersistCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Op == "persist" {
			n++
		}
	}
	return n
}

// Stored returns the current persisted snapshot for recordID.
func (p *ScriptedPort) Stored(recordID string) (engine.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, ok := p.records[recordID]
	if !ok {
		return engine.Snapshot{}, false
	}
	return snap.Clone(), true
}
