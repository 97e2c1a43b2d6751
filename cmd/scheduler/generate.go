package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/scheduler"
)

type generateOptions struct {
	input    string
	save     bool
	output   string
	timezone string
}

func newGenerateCommand(a *app) *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "採択論文を部屋と時間枠に割り当てる",
		Long: `generate は YAML ファイルの学会と論文から割り当てを計算して表示します。

--save を指定すると学会と論文をストレージに登録し、結果を下書きとして保存します。
指定しない場合はストレージに触れずに結果だけを表示します。`,
		Example: `  scheduler generate --input program.yaml
  scheduler generate --input program.yaml --save --storage-driver sqlite --sqlite-dsn ./scheduler.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(opts.timezone)
			if err != nil {
				return fmt.Errorf("タイムゾーンが不正です: %s: %w", opts.timezone, err)
			}
			return a.generate(cmd.Context(), cmd.OutOrStdout(), opts, loc)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "学会と論文を記述した YAML ファイル")
	flags.BoolVar(&opts.save, "save", false, "結果を下書きとして保存する")
	flags.StringVarP(&opts.output, "output", "o", "table", "出力形式: table, json")
	flags.StringVar(&opts.timezone, "timezone", "UTC", "表示に使うタイムゾーン")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) generate(ctx context.Context, out io.Writer, opts generateOptions, loc *time.Location) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("出力形式が不正です: %s", opts.output)
	}
	program, err := readProgramFile(opts.input)
	if err != nil {
		return err
	}

	var (
		result   application.GenerateResult
		schedule *application.Schedule
	)
	if opts.save {
		err = a.withServices(ctx, func(svc services) error {
			draft, err := saveAndGenerate(ctx, svc, program)
			result, schedule = draft.GenerateResult, draft.Schedule
			return err
		})
	} else {
		var input application.GenerateInput
		if input, err = program.generateInput(); err == nil {
			result = a.dryRunService().Generate(ctx, input)
		}
	}
	if err != nil {
		return err
	}

	if opts.output == "json" {
		if err := writeGenerateJSON(out, result, schedule); err != nil {
			return err
		}
	} else {
		writeGenerateTable(out, result, schedule, program.titles(), loc)
	}
	if !result.OK {
		return fmt.Errorf("割り当てに失敗しました: %s", result.Reason)
	}
	return nil
}

// dryRunService allocates without storage or hooks.
func (a *app) dryRunService() *application.ScheduleService {
	return application.NewScheduleServiceWithOptions(nil, application.Hooks{}, nil, time.Now, application.ScheduleServiceOptions{
		Logger:           a.logger,
		GenerationBudget: a.cfg.GenerationBudget,
	})
}

func saveAndGenerate(ctx context.Context, svc services, program programFile) (application.GenerateDraftResult, error) {
	input, err := program.Conference.toInput()
	if err != nil {
		return application.GenerateDraftResult{}, err
	}
	conference, err := svc.conferences.SaveConference(ctx, input)
	if err != nil {
		return application.GenerateDraftResult{}, describeServiceError(err)
	}
	if _, err := svc.conferences.RegisterPapers(ctx, conference.ID, program.paperInputs()); err != nil {
		return application.GenerateDraftResult{}, describeServiceError(err)
	}
	draft, err := svc.schedules.GenerateDraft(ctx, conference.ID)
	if err != nil {
		return application.GenerateDraftResult{}, describeServiceError(err)
	}
	return draft, nil
}

func writeGenerateTable(out io.Writer, result application.GenerateResult, schedule *application.Schedule, titles map[string]string, loc *time.Location) {
	if !result.OK {
		fmt.Fprintf(out, "reason: %s\n", result.Reason)
		return
	}
	if schedule != nil {
		fmt.Fprintf(out, "schedule: %s (conference %s, version %d, %s)\n", schedule.ID, schedule.ConferenceID, schedule.Version, schedule.Status)
	}
	fmt.Fprintf(out, "slots: %d  accepted: %d  scheduled: %d  unscheduled: %d\n",
		result.TotalSlots, result.TotalAccepted, len(result.Items), len(result.Unscheduled))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAPER\tTITLE\tROOM\tSTART\tEND\tSTATUS")
	for _, entry := range result.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", entry.PaperID, titles[entry.PaperID], entry.RoomID,
			entry.Start.In(loc).Format("2006-01-02 15:04"), entry.End.In(loc).Format("15:04"), entry.Status)
	}
	for _, entry := range result.Unscheduled {
		fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%s (%s)\n", entry.PaperID, titles[entry.PaperID], entry.Status, entry.Reason)
	}
	tw.Flush()
}

type generateJSON struct {
	OK            bool          `json:"ok"`
	Reason        string        `json:"reason,omitempty"`
	Schedule      *scheduleJSON `json:"schedule,omitempty"`
	TotalSlots    int           `json:"totalSlots"`
	TotalAccepted int           `json:"totalAccepted"`
	Items         []entryJSON   `json:"items"`
	Unscheduled   []entryJSON   `json:"unscheduled"`
}

type scheduleJSON struct {
	ID           string `json:"id"`
	ConferenceID string `json:"conferenceId"`
	Status       string `json:"status"`
	Version      int64  `json:"version"`
}

type entryJSON struct {
	ID      string `json:"id,omitempty"`
	PaperID string `json:"paperId"`
	RoomID  string `json:"roomId,omitempty"`
	SlotID  string `json:"slotId,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func writeGenerateJSON(out io.Writer, result application.GenerateResult, schedule *application.Schedule) error {
	payload := generateJSON{
		OK:            result.OK,
		TotalSlots:    result.TotalSlots,
		TotalAccepted: result.TotalAccepted,
		Items:         toEntryJSON(result.Items),
		Unscheduled:   toEntryJSON(result.Unscheduled),
	}
	if !result.OK {
		payload.Reason = result.Reason.String()
	}
	if schedule != nil {
		payload.Schedule = &scheduleJSON{
			ID:           schedule.ID,
			ConferenceID: schedule.ConferenceID,
			Status:       string(schedule.Status),
			Version:      schedule.Version,
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func toEntryJSON(entries []scheduler.Entry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, entry := range entries {
		out[i] = entryJSON{
			ID:      entry.ID,
			PaperID: entry.PaperID,
			RoomID:  entry.RoomID,
			SlotID:  entry.SlotID,
			Status:  string(entry.Status),
			Reason:  entry.Reason.String(),
		}
		if entry.Scheduled() {
			out[i].Start = entry.Start.UTC().Format(time.RFC3339)
			out[i].End = entry.End.UTC().Format(time.RFC3339)
		}
	}
	return out
}
