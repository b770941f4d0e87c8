// Package testing holds shared test fixtures
package testing

import (
	"database/sql"
	"testing"

	"github.com/teranos/tcgbot/db"
)

// CreateTestDB opens a migrated in-memory database closed on test cleanup
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenWithMigrations(db.MemoryPath, nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}
