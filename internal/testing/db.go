// Package testing provides testing utilities and helpers for the aurum project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/aurum/internal/database"
)

// NewTestDB creates a file-backed SQLite database in t.TempDir() with the
// aurum schema applied. The database is closed when the test finishes.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "aurum_test.db"),
		Profile: database.ProfileStandard,
		Name:    "aurum",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
	})

	return db
}
