package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp directory.
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

// mustWriteEvents appends each payload as a sample event.
func mustWriteEvents(t *testing.T, s *Store, payloads ...string) []StoredEvent {
	t.Helper()
	var out []StoredEvent
	for _, p := range payloads {
		ev, err := s.WriteEvent(context.Background(), []byte(p))
		if err != nil {
			t.Fatalf("WriteEvent(%s) failed: %v", p, err)
		}
		out = append(out, ev)
	}
	return out
}
