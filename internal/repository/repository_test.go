package repository

import (
	"database/sql"
	"testing"

	"github.com/ToppleTheNun/mchammer-sub000/internal/database"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB opens an in-memory database with the full schema
// applied. A single connection is forced because each new :memory:
// connection would otherwise see its own empty database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}
