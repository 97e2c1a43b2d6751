package migration

import (
	"errors"
	"fmt"
	"strings"
)

// Causes carried by MigrationError and DatabaseError; match them with errors.Is.
var (
	ErrMigrationFailed      = errors.New("migration: apply failed")
	ErrInvalidMigrationFile = errors.New("migration: malformed file")
	// ErrVersionConflict marks a gap in the numbered sequence or an applied version with no file.
	ErrVersionConflict     = errors.New("migration: version sequence broken")
	ErrInvalidVersion      = errors.New("migration: bad version number")
	ErrDuplicateVersion    = errors.New("migration: version used twice")
	ErrVersionTableCorrupt = errors.New("migration: schema_migrations unreadable")
)

// MigrationError reports a step that failed while loading, planning or applying a file.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	return describeStep("migration", e.Version, e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}

// DatabaseError reports a statement the target database refused. Query is empty for
// transaction control.
type DatabaseError struct {
	Version   string
	Query     string
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return describeStep("database", e.Version, "", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func NewDatabaseError(version, query, operation string, err error) *DatabaseError {
	return &DatabaseError{Version: version, Query: query, Operation: operation, Err: err}
}

func describeStep(kind, version, file, operation string, err error) string {
	var b strings.Builder
	b.WriteString(kind)
	if version != "" {
		b.WriteString(" " + version)
	}
	if file != "" {
		b.WriteString(" (" + file + ")")
	}
	fmt.Fprintf(&b, ": %s: %v", operation, err)
	return b.String()
}
