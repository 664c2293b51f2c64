package repository

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/jmylchreest/chromenv/internal/database/migrations"
)

// setupTestDB creates a migrated in-memory database that is closed when the test ends.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
