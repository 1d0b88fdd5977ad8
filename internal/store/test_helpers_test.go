package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/inkwell/internal/field"
)

// createTestStore creates a file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// noteFields builds a typical record payload.
func noteFields(title, body string, tags ...string) field.Map {
	m := field.Map{
		"title": field.String(title),
		"body":  field.String(body),
	}
	if len(tags) > 0 {
		list := make(field.List, len(tags))
		for i, tag := range tags {
			list[i] = field.String(tag)
		}
		m["tags"] = list
	}
	return m
}
