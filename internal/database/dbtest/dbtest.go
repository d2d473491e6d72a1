// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"testing"

	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/internal/config"
	"github.com/axellelanca/shortlinks/internal/database"
)

// Open returns a fresh migrated in-memory SQLite database, closed at test end.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
