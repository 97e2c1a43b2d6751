package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/conference-scheduler/internal/export"
)

type exportOptions struct {
	conferenceID string
	format       string
	out          string
	timezone     string
}

func newExportCommand(a *app) *cobra.Command {
	opts := exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "公開済みスケジュールを xlsx または ics で書き出す",
		Example: `  scheduler export --conference conf-1 --format xlsx --out program.xlsx
  scheduler export --conference conf-1 --format ics > program.ics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, ok := export.ParseFormat(opts.format)
			if !ok {
				return fmt.Errorf("未対応の出力形式です: %s", opts.format)
			}
			loc, err := time.LoadLocation(opts.timezone)
			if err != nil {
				return fmt.Errorf("タイムゾーンが不正です: %s: %w", opts.timezone, err)
			}
			return a.exportSchedule(cmd.Context(), cmd.OutOrStdout(), opts, format, loc)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.conferenceID, "conference", "c", "", "学会 ID")
	flags.StringVarP(&opts.format, "format", "f", string(export.FormatXLSX), "出力形式: xlsx, ics")
	flags.StringVar(&opts.out, "out", "-", "出力先ファイル (- は標準出力)")
	flags.StringVar(&opts.timezone, "timezone", "UTC", "xlsx の時刻表示に使うタイムゾーン")
	_ = cmd.MarkFlagRequired("conference")
	return cmd
}

func (a *app) exportSchedule(ctx context.Context, stdout io.Writer, opts exportOptions, format export.Format, loc *time.Location) error {
	var buf bytes.Buffer
	err := a.withServices(ctx, func(svc services) error {
		view, err := svc.schedules.GetPublishedSchedule(ctx, opts.conferenceID)
		if err != nil {
			return describeServiceError(err)
		}
		return export.Write(&buf, format, view, loc)
	})
	if err != nil {
		return err
	}

	if opts.out == "" || opts.out == "-" {
		_, err = buf.WriteTo(stdout)
		return err
	}
	if err := os.WriteFile(opts.out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("出力ファイルに書き込めません: %w", err)
	}
	a.logger.Info("schedule exported", "conference_id", opts.conferenceID, "format", string(format), "path", opts.out, "bytes", buf.Len())
	return nil
}
