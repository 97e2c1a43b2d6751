package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"
)

type fakeExecutor struct {
	applied  []AppliedMigration
	executed []string
	failOn   string
}

func (f *fakeExecutor) ExecuteMigration(ctx context.Context, migration Migration) error {
	if migration.Version == f.failOn {
		return errors.New("syntax error")
	}
	f.executed = append(f.executed, migration.Version)
	f.applied = append(f.applied, AppliedMigration{Version: migration.Version, AppliedAt: time.Now()})
	return nil
}

func (f *fakeExecutor) InitializeVersionTable(ctx context.Context) error { return nil }

func (f *fakeExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	return append([]AppliedMigration(nil), f.applied...), nil
}

func testSource() fstest.MapFS {
	return fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE conferences (id TEXT);")},
		"002_add_papers.sql":     {Data: []byte("CREATE TABLE papers (id TEXT);")},
		"003_add_schedules.sql":  {Data: []byte("CREATE TABLE schedules (id TEXT);")},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerRunAppliesPendingInOrder(t *testing.T) {
	executor := &fakeExecutor{applied: []AppliedMigration{{Version: "001"}}}
	manager := NewManager(testSource(), executor, quietLogger())

	if err := manager.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(executor.executed) != 2 || executor.executed[0] != "002" || executor.executed[1] != "003" {
		t.Fatalf("expected 002 then 003, got %v", executor.executed)
	}

	status, err := manager.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.CurrentVersion != "003" || status.PendingCount != 0 {
		t.Fatalf("expected current 003 with nothing pending, got %+v", status)
	}
}

func TestManagerRunStopsAtFailure(t *testing.T) {
	executor := &fakeExecutor{failOn: "002"}
	manager := NewManager(testSource(), executor, quietLogger())

	err := manager.Run(context.Background())
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var migrationErr *MigrationError
	if !errors.As(err, &migrationErr) || migrationErr.Version != "002" {
		t.Fatalf("expected failure attributed to 002, got %v", err)
	}
	if len(executor.executed) != 1 {
		t.Fatalf("expected only 001 to be applied, got %v", executor.executed)
	}
}

func TestManagerDetectsSequenceProblems(t *testing.T) {
	t.Run("gap in files", func(t *testing.T) {
		source := testSource()
		delete(source, "002_add_papers.sql")
		_, err := NewManager(source, &fakeExecutor{}, quietLogger()).Status(context.Background())
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("applied version without file", func(t *testing.T) {
		executor := &fakeExecutor{applied: []AppliedMigration{{Version: "001"}, {Version: "004"}}}
		_, err := NewManager(testSource(), executor, quietLogger()).Status(context.Background())
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("corrupt version table", func(t *testing.T) {
		executor := &fakeExecutor{applied: []AppliedMigration{{Version: "abc"}}}
		_, err := NewManager(testSource(), executor, quietLogger()).Status(context.Background())
		if !errors.Is(err, ErrVersionTableCorrupt) {
			t.Fatalf("expected ErrVersionTableCorrupt, got %v", err)
		}
	})
}
