package engine

// Status is the externally observable save state of the open session.
//
// Transitions are driven exclusively by the event loop:
//
//	Clean  --edit(divergent)-->  Dirty
//	Dirty  --edit(reverted)-->   Clean
//	Dirty  --debounce/flush-->   Saving
//	Saving --success-->          Clean (or Dirty, if edited mid-flight)
//	Saving --failure-->          Error
//	Error  --retry/flush-->      Saving
//	Error  --edit(reverted)-->   Clean (at next retry firing)
type Status int

const (
	// StatusClean means the working copy matches the persisted snapshot.
	StatusClean Status = iota
	// StatusDirty means unsaved divergence exists and a debounce is pending.
	StatusDirty
	// StatusSaving means exactly one persist attempt is in flight.
	StatusSaving
	// StatusError means the last attempt failed and a retry is scheduled.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusDirty:
		return "dirty"
	case StatusSaving:
		return "saving"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusChange is delivered to listeners registered with OnStatusChange.
// Seq is a logical clock stamp; changes with higher Seq happened later.
// Err is non-nil only when Status is StatusError.
type StatusChange struct {
	Seq    int64
	Status Status
	Err    error
}
