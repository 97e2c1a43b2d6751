package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/conference-scheduler/internal/persistence/sqlite"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary file. The store is closed
// when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlstore.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
