package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/matchi-app/matchi-api/internal/adapters/sqlite"
)

// OpenMigratedDB opens a fresh database file under t.TempDir and migrates it.
func OpenMigratedDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "matchi.db"), sqlite.Options{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := sqlite.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
