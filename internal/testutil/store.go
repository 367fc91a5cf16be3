package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/coffeematch/internal/store"
)

// NewStore opens a fresh SQLite store in a temp directory and closes it
// when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "coffeematch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
