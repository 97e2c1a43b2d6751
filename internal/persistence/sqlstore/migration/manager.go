package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager applies the pending migrations of a migration set.
type Manager struct {
	source   fs.FS
	executor Executor
	logger   *slog.Logger
}

// NewManager creates a manager reading migration files from source.
func NewManager(source fs.FS, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:   source,
		executor: executor,
		logger:   logger.With("component", "migration"),
	}
}

// Run executes all pending migrations in version order. It stops at the first failure; the
// failed migration's transaction is rolled back and earlier migrations stay applied.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if status.PendingCount == 0 {
		m.logger.InfoContext(ctx, "database schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", status.PendingCount,
	)
	for _, migration := range status.PendingMigrations {
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"checksum", migration.Checksum,
		)
	}
	return nil
}

// Status reports the applied and pending migrations.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := Scan(m.source)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedSet := make(map[int]bool, len(applied))
	current := ""
	highest := -1
	for _, migration := range applied {
		n := versionNumber(migration.Version)
		appliedSet[n] = true
		if n > highest {
			highest = n
			current = migration.Version
		}
	}

	status := &Status{
		CurrentVersion:    current,
		AppliedMigrations: applied,
	}
	for _, migration := range available {
		if !appliedSet[versionNumber(migration.Version)] {
			status.PendingMigrations = append(status.PendingMigrations, migration)
		}
	}
	status.PendingCount = len(status.PendingMigrations)
	return status, nil
}

// validateSequence ensures the available versions have no gaps and that every applied
// version still has a file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	versions := make(map[int]bool, len(available))
	for i, migration := range available {
		n := versionNumber(migration.Version)
		versions[n] = true
		if i > 0 && n != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence",
				ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
	}

	for _, migration := range applied {
		if !migrationFilePattern.MatchString(migration.Version+"_x.sql") {
			return NewDatabaseError(migration.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrVersionTableCorrupt, migration.Version))
		}
		if !versions[versionNumber(migration.Version)] {
			return fmt.Errorf("%w: applied migration %s not found in available migrations",
				ErrVersionConflict, migration.Version)
		}
	}
	return nil
}
