package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrScheduleNotFound is returned when a status transition targets a conference without a schedule.
	ErrScheduleNotFound = errors.New("persistence: schedule not found")
	// ErrVersionConflict is returned when a draft is saved against a version that is no longer current.
	ErrVersionConflict = errors.New("persistence: version conflict")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a check constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a record references a missing parent.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
