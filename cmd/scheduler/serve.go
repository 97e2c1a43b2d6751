package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httptransport "github.com/example/conference-scheduler/internal/http"
	"github.com/example/conference-scheduler/internal/tracing"
)

func newServeCommand(a *app) *cobra.Command {
	var timezone string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP API を起動する",
		Long: `serve は学会・論文の登録、下書きの生成と編集、保存と公開、
公開済みプログラムの閲覧とエクスポートを提供する HTTP API を起動します。

SCHEDULER_API_TOKEN_HASH が設定されている場合、公開済みプログラム以外の
エンドポイントは Bearer トークンまたは X-API-Token ヘッダーを要求します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("タイムゾーンが不正です: %s: %w", timezone, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, loc)
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "エクスポートで使うタイムゾーン (例: Asia/Tokyo)")
	return cmd
}

func (a *app) serve(ctx context.Context, loc *time.Location) error {
	logger := a.logger

	if a.cfg.TraceFile != "" {
		shutdownTracing, err := tracing.Init("conference-scheduler", version, a.cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("トレースを初期化できません: %w", err)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("failed to flush traces", "error", err)
			}
		}()
	}

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return err
	}

	return a.withServices(ctx, func(svc services) error {
		server := &http.Server{
			Handler:           a.newHandler(svc, loc),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		return runServer(ctx, server, listener, a.cfg.ShutdownTimeout, logger)
	})
}

func (a *app) newHandler(svc services, loc *time.Location) http.Handler {
	logger := a.logger
	return httptransport.NewRouter(httptransport.RouterConfig{
		Conferences: httptransport.NewConferenceHandler(svc.conferences, logger),
		Schedules:   httptransport.NewScheduleHandlerWithLocation(svc.schedules, logger, loc),
		Protect: httptransport.RequireAPIToken(httptransport.APITokenConfig{
			Hash:   a.cfg.APITokenHash,
			Audit:  svc.hooks.Audit,
			Logger: logger,
		}),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})
}

// runServer serves on listener until ctx is done, then drains in-flight requests for at
// most shutdownTimeout.
func runServer(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("scheduler API listening", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to shutdown server", "error", err)
		return err
	}
	logger.Info("scheduler API stopped")
	return nil
}
