package sqlite

import (
	"path/filepath"
	"testing"
)

// OpenTest opens a migrated pair on a temporary file. Pools close on cleanup.
func OpenTest(t *testing.T) *Pair {
	t.Helper()

	p, err := OpenPair(filepath.Join(t.TempDir(), "test.sqlite"), 4)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if err := Migrate(p.Write); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return p
}
