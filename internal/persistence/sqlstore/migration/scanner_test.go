package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		expectedErr   error
		errorContains string
	}{
		{
			name: "sorts by numeric version",
			files: map[string]string{
				"010_add_indexes.sql":    "CREATE INDEX idx_papers ON papers(conference_id);",
				"001_initial_schema.sql": "CREATE TABLE conferences (id TEXT PRIMARY KEY);",
				"002_add_papers.sql":     "CREATE TABLE papers (id TEXT PRIMARY KEY);",
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-SQL files",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE conferences (id TEXT PRIMARY KEY);",
				"README.md":              "# notes",
			},
			expectedOrder: []string{"001"},
		},
		{
			name:          "empty source",
			files:         map[string]string{},
			expectedOrder: nil,
		},
		{
			name: "invalid filename",
			files: map[string]string{
				"initial.sql": "CREATE TABLE conferences (id TEXT PRIMARY KEY);",
			},
			expectedErr:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate version",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE conferences (id TEXT PRIMARY KEY);",
				"001_other.sql":          "CREATE TABLE papers (id TEXT PRIMARY KEY);",
			},
			expectedErr: ErrDuplicateVersion,
		},
		{
			name: "comment-only file",
			files: map[string]string{
				"001_initial_schema.sql": "-- nothing here\n",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE conferences (id TEXT PRIMARY KEY;",
			},
			expectedErr:   ErrInvalidMigrationFile,
			errorContains: "unmatched opening parenthesis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{}
			for name, content := range tt.files {
				fsys[name] = &fstest.MapFile{Data: []byte(content)}
			}

			migrations, err := Scan(fsys)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error containing %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Errorf("migration %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Errorf("migration %s has no checksum", version)
				}
			}
		})
	}
}

func TestScanDescription(t *testing.T) {
	fsys := fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("-- Description: Conferences and rooms\nCREATE TABLE conferences (id TEXT);")},
		"002_add_papers.sql":     {Data: []byte("CREATE TABLE papers (id TEXT);")},
	}

	migrations, err := Scan(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if migrations[0].Description != "Conferences and rooms" {
		t.Errorf("expected description from header comment, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add papers" {
		t.Errorf("expected description from filename, got %q", migrations[1].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- Description: two tables
CREATE TABLE a (id TEXT);

-- second
CREATE TABLE b (id TEXT);
`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE a (id TEXT)" {
		t.Errorf("unexpected first statement %q", statements[0])
	}
}
