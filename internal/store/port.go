package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/inkwell/internal/engine"
	"github.com/roach88/inkwell/internal/field"
)

// Store implements engine.Port: Persist normalizes and upserts a record's
// snapshot inside one transaction, appending an attempt row either way.
var _ engine.Port = (*Store)(nil)

// Persist writes the record's fields and returns the confirmed snapshot.
//
// This is where server-side normalization lives: strings are trimmed and
// NFC-normalized, empty fields are dropped, duplicate list entries are
// removed. The engine adopts the returned snapshot as its new baseline.
func (s *Store) Persist(ctx context.Context, recordID string, fields field.Map) (engine.Snapshot, error) {
	token := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC()

	normalized := Normalize(fields)
	text, err := marshalFields(normalized)
	if err != nil {
		s.recordFailure(ctx, token, recordID, now, err)
		return engine.Snapshot{}, &engine.SaveError{
			Code:         engine.ErrCodePermanent,
			Message:      "fields cannot be serialized",
			RecordID:     recordID,
			AttemptToken: token,
			Err:          err,
		}
	}
	etag, err := field.SnapshotETag(normalized)
	if err != nil {
		s.recordFailure(ctx, token, recordID, now, err)
		return engine.Snapshot{}, &engine.SaveError{
			Code:         engine.ErrCodePermanent,
			Message:      "fields cannot be hashed",
			RecordID:     recordID,
			AttemptToken: token,
			Err:          err,
		}
	}

	revision, err := s.persistTx(ctx, token, recordID, text, etag, now)
	if err != nil {
		s.recordFailure(ctx, token, recordID, now, err)
		return engine.Snapshot{}, &engine.SaveError{
			Code:         engine.ErrCodeTransient,
			Message:      "snapshot write failed",
			RecordID:     recordID,
			AttemptToken: token,
			Err:          err,
		}
	}

	return engine.Snapshot{
		Fields:      normalized,
		Revision:    strconv.FormatInt(revision, 10),
		PersistedAt: now,
	}, nil
}

// persistTx bumps the revision, upserts the snapshot, and logs the
// attempt in one transaction.
func (s *Store) persistTx(ctx context.Context, token, recordID, text, etag string, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM snapshots WHERE record_id = ?`, recordID,
	).Scan(&revision)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		revision = 0
	case err != nil:
		return 0, fmt.Errorf("read revision: %w", err)
	}
	revision++

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (record_id, fields, etag, revision, persisted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			fields = excluded.fields,
			etag = excluded.etag,
			revision = excluded.revision,
			persisted_at = excluded.persisted_at
	`, recordID, text, etag, revision, now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts (token, record_id, etag, outcome, error, revision, attempted_at)
		VALUES (?, ?, ?, 'ok', '', ?, ?)
	`, token, recordID, etag, revision, now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("log attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return revision, nil
}

// recordFailure best-effort logs a failed attempt. A logging failure is
// swallowed; the caller already has the primary error.
func (s *Store) recordFailure(ctx context.Context, token, recordID string, now time.Time, cause error) {
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO attempts (token, record_id, outcome, error, attempted_at)
		VALUES (?, ?, 'error', ?, ?)
	`, token, recordID, cause.Error(), now.Format(time.RFC3339Nano))
}

// Load implements engine.Port. ok is false when the record has never
// been persisted.
func (s *Store) Load(ctx context.Context, recordID string) (engine.Snapshot, bool, error) {
	var (
		text        string
		revision    int64
		persistedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT fields, revision, persisted_at
		FROM snapshots WHERE record_id = ?
	`, recordID).Scan(&text, &revision, &persistedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load snapshot %s: %w", recordID, err)
	}

	fields, err := unmarshalFields(text)
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load snapshot %s: %w", recordID, err)
	}
	at, err := time.Parse(time.RFC3339Nano, persistedAt)
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load snapshot %s: bad timestamp: %w", recordID, err)
	}

	return engine.Snapshot{
		Fields:      fields,
		Revision:    strconv.FormatInt(revision, 10),
		PersistedAt: at,
	}, true, nil
}

// Attempt is one row of a record's persist history.
type Attempt struct {
	Token       string
	RecordID    string
	ETag        string
	Outcome     string
	Error       string
	Revision    int64 // 0 for failed attempts
	AttemptedAt time.Time
}

// History returns a record's persist attempts, oldest first.
func (s *Store) History(ctx context.Context, recordID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, record_id, etag, outcome, error, COALESCE(revision, 0), attempted_at
		FROM attempts
		WHERE record_id = ?
		ORDER BY attempted_at ASC, token ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", recordID, err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a  Attempt
			at string
		)
		if err := rows.Scan(&a.Token, &a.RecordID, &a.ETag, &a.Outcome, &a.Error, &a.Revision, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.AttemptedAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("attempt %s: bad timestamp: %w", a.Token, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Records returns every persisted record ID with its current revision,
// ordered by record ID.
func (s *Store) Records(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, revision FROM snapshots ORDER BY record_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			id  string
			rev int64
		)
		if err := rows.Scan(&id, &rev); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out[id] = rev
	}
	return out, rows.Err()
}

// Normalize applies the backend's cleanup rules to a field map: strings
// are NFC-normalized and trimmed, duplicate list entries collapse to the
// first occurrence, and empty fields are dropped entirely.
func Normalize(m field.Map) field.Map {
	out := make(field.Map, len(m))
	for name, v := range m {
		nv := normalizeValue(v)
		if nv == nil || field.Empty(nv) {
			continue
		}
		out[name] = nv
	}
	return out
}

func normalizeValue(v field.Value) field.Value {
	switch val := v.(type) {
	case field.String:
		return field.String(strings.TrimSpace(norm.NFC.String(string(val))))
	case field.List:
		seen := make(map[string]bool, len(val))
		out := make(field.List, 0, len(val))
		for _, elem := range val {
			ne := normalizeValue(elem)
			if ne == nil || field.Empty(ne) {
				continue
			}
			key, err := field.MarshalCanonical(ne)
			if err != nil {
				continue
			}
			if seen[string(key)] {
				continue
			}
			seen[string(key)] = true
			out = append(out, ne)
		}
		return out
	default:
		return v
	}
}
