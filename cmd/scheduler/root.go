package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/conference-scheduler/internal/config"
)

// app carries what PersistentPreRunE resolves for every subcommand.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"storage-driver": "storage_driver",
	"sqlite-dsn":     "sqlite_dsn",
	"postgres-dsn":   "postgres_dsn",
	"log-level":      "log_level",
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var configFile string

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "学会プログラムの編成・編集・公開を行う",
		Long: `scheduler は採択論文を学会の部屋と時間枠に割り当て、
下書きの編集・保存・公開を HTTP API とコマンドラインから提供します。

設定は SCHEDULER_* 環境変数、設定ファイル、フラグの順に上書きされます。`,
		Version:       version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd, configFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "設定ファイルのパス (YAML/JSON/TOML)")
	flags.String("storage-driver", "", "ストレージドライバ: memory, sqlite, postgres")
	flags.String("sqlite-dsn", "", "SQLite データベースファイル")
	flags.String("postgres-dsn", "", "PostgreSQL 接続文字列")
	flags.String("log-level", "", "ログレベル: debug, info, warn, error")

	cmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newGenerateCommand(a),
		newPublishCommand(a),
		newExportCommand(a),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command, configFile string) error {
	v, err := config.NewViper()
	if err != nil {
		return err
	}
	if file := strings.TrimSpace(configFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("設定ファイルを読み込めません: %s: %w", file, err)
		}
	}
	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return err
			}
		}
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("version", version)
	return nil
}
