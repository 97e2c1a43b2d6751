// Package migration applies versioned schema files to a SQL database.
//
// Migration files are read from an fs.FS (usually an embed.FS compiled into the binary)
// and must be named {version}_{description}.sql, for example "001_initial_schema.sql".
// Applied versions are tracked in a schema_migrations table, every file runs inside its
// own transaction, and version numbers must form a gap-free sequence.
//
// Example usage:
//
//	manager := migration.NewManager(migrations, migration.NewExecutor(db, dialect), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
