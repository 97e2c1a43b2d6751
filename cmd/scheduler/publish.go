package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/conference-scheduler/internal/application"
)

func newPublishCommand(a *app) *cobra.Command {
	var conferenceID string
	var saveOnly bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "学会のスケジュールを公開する",
		Long: `publish は学会のスケジュールを公開状態にします。公開後は編集できません。
--save-only を指定すると公開せずに保存状態へ移します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.publish(cmd.Context(), cmd.OutOrStdout(), conferenceID, saveOnly)
		},
	}

	cmd.Flags().StringVarP(&conferenceID, "conference", "c", "", "学会 ID")
	cmd.Flags().BoolVar(&saveOnly, "save-only", false, "公開せずに保存する")
	_ = cmd.MarkFlagRequired("conference")
	return cmd
}

func (a *app) publish(ctx context.Context, out io.Writer, conferenceID string, saveOnly bool) error {
	return a.withServices(ctx, func(svc services) error {
		var (
			schedule application.Schedule
			err      error
		)
		if saveOnly {
			schedule, err = svc.schedules.SaveSchedule(ctx, conferenceID)
		} else {
			schedule, err = svc.schedules.Publish(ctx, conferenceID)
		}
		if err != nil {
			return describeServiceError(err)
		}
		fmt.Fprintf(out, "schedule %s of conference %s is %s (version %d)\n",
			schedule.ID, schedule.ConferenceID, schedule.Status, schedule.Version)
		return nil
	})
}
