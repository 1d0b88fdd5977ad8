package engine

import (
	"context"
	"time"

	"github.com/roach88/inkwell/internal/field"
)

// Snapshot is a persisted view of a record's fields as confirmed by the
// port. After a successful save the engine adopts the returned snapshot
// wholesale, so any normalization the backend applied (trimming, tag
// dedup, Unicode normalization) becomes the new comparison baseline.
type Snapshot struct {
	// Fields is the confirmed field map.
	Fields field.Map

	// Revision is an opaque version identifier assigned by the port.
	// Empty when the backend does not version records.
	Revision string

	// PersistedAt is the port's timestamp for the write.
	PersistedAt time.Time
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Fields:      s.Fields.Clone(),
		Revision:    s.Revision,
		PersistedAt: s.PersistedAt,
	}
}

// Port is the persistence boundary the engine saves through.
//
// Persist is called from a dedicated goroutine per attempt, never from the
// event loop, so implementations may block on I/O. At most one Persist
// call is in flight at a time. Implementations should return *SaveError
// to classify failures; anything else is treated as transient.
//
// Load backfills a session opened without initial fields. ok is false when
// the record does not exist yet.
type Port interface {
	Persist(ctx context.Context, recordID string, fields field.Map) (Snapshot, error)
	Load(ctx context.Context, recordID string) (Snapshot, bool, error)
}
