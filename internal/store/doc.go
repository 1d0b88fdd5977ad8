// Package store provides SQLite-backed persistence for inkwell records.
//
// The store is the production implementation of engine.Port. It keeps:
//   - Snapshots: the current persisted field map per record, one row each
//   - Attempts: an append-only log of every persist attempt and outcome
//
// # Normalization
//
// Persist is where server-side cleanup happens: string fields are
// NFC-normalized and trimmed, empty fields are dropped, and duplicate
// list entries are removed. The snapshot returned to the engine reflects
// this normalized form, so it becomes the engine's comparison baseline.
//
// # Storage Format
//
// Field maps are stored as RFC 8785 canonical JSON TEXT with a SHA-256
// etag over the canonical form. Canonical serialization means the etag
// is stable across key order and Unicode representation differences.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
