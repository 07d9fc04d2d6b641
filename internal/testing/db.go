// Package testing provides testing utilities and helpers for the stockwatch project.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/stockwatch/internal/database"
)

// NewTestDB creates a migrated SQLite database in a per-test temporary directory.
// name selects the embedded schema ("ledger" or "cache"). The database is closed
// through t.Cleanup; the returned func may also be called early and is idempotent.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	profile := database.ProfileLedger
	if name == "cache" {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), fmt.Sprintf("%s.db", name)),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
	t.Cleanup(cleanup)

	return db, cleanup
}
