// Package sqlite opens the scheduler store on an embedded SQLite database.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for SQLite.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dialect describes SQLite to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:     "sqlite",
	Classify: classify,
}

// classify maps SQLite error messages to persistence sentinels.
func classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return persistence.ErrDuplicate
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return persistence.ErrForeignKeyViolation
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return persistence.ErrConstraintViolation
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return sqlstore.ErrBusy
	}
	return nil
}

// Open connects to the database, applies pending migrations and returns the store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sqlstore.Store, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager := migration.NewManager(Migrations(), migration.NewExecutor(db, Dialect), logger)
	if err := manager.Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return sqlstore.NewStore(db, Dialect), nil
}
