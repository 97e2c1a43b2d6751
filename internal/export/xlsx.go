package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/conference-scheduler/internal/application"
)

const (
	scheduleSheet    = "Schedule"
	unscheduledSheet = "Unscheduled"
)

var (
	scheduleHeader    = []string{"Start", "End", "Room", "Paper ID", "Title"}
	scheduleWidths    = []float64{20, 20, 18, 14, 48}
	unscheduledHeader = []string{"Paper ID", "Title", "Reason"}
	unscheduledWidths = []float64{14, 48, 22}
)

// WriteXLSX writes a workbook with a Schedule sheet of placed talks and an Unscheduled
// sheet listing papers without a slot and why. Times are rendered in loc.
func WriteXLSX(w io.Writer, view application.ScheduleView, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	if _, err := f.NewSheet(unscheduledSheet); err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	rows := make([][]any, 0, len(view.Entries))
	for _, entry := range scheduledEntries(view) {
		rows = append(rows, []any{
			entry.Start.In(loc).Format("2006-01-02 15:04"),
			entry.End.In(loc).Format("2006-01-02 15:04"),
			roomName(view, entry.RoomID),
			entry.PaperID,
			paperTitle(view, entry.PaperID),
		})
	}
	if err := writeSheet(f, scheduleSheet, scheduleHeader, scheduleWidths, headerStyle, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, entry := range unscheduledEntries(view) {
		rows = append(rows, []any{entry.PaperID, paperTitle(view, entry.PaperID), entry.Reason.String()})
	}
	if err := writeSheet(f, unscheduledSheet, unscheduledHeader, unscheduledWidths, headerStyle, rows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, widths []float64, headerStyle int, rows [][]any) error {
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("export: header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("export: set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("export: header style %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("export: column name: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, widths[col]); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("export: data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("export: set %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freeze header: %w", err)
	}
	return nil
}
