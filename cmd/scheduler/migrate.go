package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/conference-scheduler/internal/config"
	"github.com/example/conference-scheduler/internal/persistence/postgres"
	"github.com/example/conference-scheduler/internal/persistence/sqlite"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore/migration"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "データベースのマイグレーションを適用して状態を表示する",
		Long: `migrate は設定されたストレージ (sqlite または postgres) を開いて未適用の
マイグレーションを適用し、適用済みのバージョン一覧を表示します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.migrate(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) migrate(ctx context.Context, out io.Writer) error {
	if a.cfg.StorageDriver == config.DriverMemory {
		return fmt.Errorf("memory ストレージにはマイグレーションがありません")
	}

	store, err := openSQLStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	status, err := migrationManager(store, a.cfg.StorageDriver, a.logger).Status(ctx)
	if err != nil {
		return fmt.Errorf("マイグレーション状態を取得できません: %w", err)
	}

	fmt.Fprintf(out, "driver:   %s\n", a.cfg.StorageDriver)
	fmt.Fprintf(out, "current:  %s\n", status.CurrentVersion)
	fmt.Fprintf(out, "pending:  %d\n", status.PendingCount)
	for _, applied := range status.AppliedMigrations {
		fmt.Fprintf(out, "applied   %s  %s\n", applied.Version, applied.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, pending := range status.PendingMigrations {
		fmt.Fprintf(out, "pending   %s  %s\n", pending.Version, pending.Description)
	}
	return nil
}

func migrationManager(store *sqlstore.Store, driver string, logger *slog.Logger) *migration.Manager {
	db := store.Pool().DB()
	if driver == config.DriverPostgres {
		return migration.NewManager(postgres.Migrations(), migration.NewExecutor(db, postgres.Dialect), logger)
	}
	return migration.NewManager(sqlite.Migrations(), migration.NewExecutor(db, sqlite.Dialect), logger)
}
