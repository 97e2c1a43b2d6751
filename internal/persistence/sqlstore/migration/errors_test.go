package migration

import (
	"errors"
	"testing"
)

func TestStepErrorMessages(t *testing.T) {
	cause := errors.New("no such table: papers")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "migration with version and file",
			err:  NewMigrationError("002", "002_papers.sql", "execute migration", cause),
			want: "migration 002 (002_papers.sql): execute migration: no such table: papers",
		},
		{
			name: "migration without version",
			err:  NewMigrationError("", ".", "read directory", cause),
			want: "migration (.): read directory: no such table: papers",
		},
		{
			name: "database statement",
			err:  NewDatabaseError("002", "CREATE INDEX idx ON papers(id)", "execute statement 1", cause),
			want: "database 002: execute statement 1: no such table: papers",
		},
		{
			name: "database bookkeeping",
			err:  NewDatabaseError("", "", "get applied versions", cause),
			want: "database: get applied versions: no such table: papers",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			if !errors.Is(tc.err, cause) {
				t.Fatalf("expected %v to unwrap to its cause", tc.err)
			}
		})
	}
}
