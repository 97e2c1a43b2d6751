// Package postgres opens the scheduler store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for PostgreSQL.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dialect describes PostgreSQL to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:     "postgres",
	Numbered: true,
	Classify: classify,
}

// PostgreSQL SQLSTATE codes the store distinguishes.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return persistence.ErrDuplicate
	case codeForeignKeyViolation:
		return persistence.ErrForeignKeyViolation
	case codeCheckViolation, codeNotNullViolation:
		return persistence.ErrConstraintViolation
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return sqlstore.ErrBusy
	}
	return nil
}

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns pool defaults for dsn.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Open connects to PostgreSQL, applies pending migrations and returns the store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sqlstore.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	if err := Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.NewStore(db, Dialect), nil
}

// Migrate applies the pending PostgreSQL migrations on db.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	manager := migration.NewManager(Migrations(), migration.NewExecutor(db, Dialect), logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}
