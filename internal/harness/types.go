package harness

import (
	"github.com/roach88/inkwell/internal/engine"
	"github.com/roach88/inkwell/internal/field"
)

// TraceEvent is one observable event from a scenario run: a status
// transition or a port call. Events share the engine's logical clock, so
// sorting by Seq yields the exact interleaving the loop produced.
type TraceEvent struct {
	Type   string `json:"type"` // "status", "persist" or "load"
	Seq    int64  `json:"seq"`
	AtMS   int64  `json:"at_ms"` // virtual time offset from scenario start
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Record string `json:"record,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Trace contains status transitions and port calls in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalStatus is the engine status after the last step.
	FinalStatus engine.Status `json:"-"`

	// LastError is the engine's last save failure after the last step.
	LastError error `json:"-"`

	// CloseErr is the error returned by the close step, if the scenario
	// had one.
	CloseErr error `json:"-"`

	// SaveCount is the number of persist attempts the port observed.
	SaveCount int `json:"save_count"`

	// Stored is the port's final snapshot of the scenario's record, nil
	// if nothing was ever persisted.
	Stored field.Map `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
