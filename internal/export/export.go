// Package export renders published schedules as spreadsheets and calendar feeds.
package export

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// Format names an export encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatICS  Format = "ics"
)

// ParseFormat resolves a format name, ignoring case and a leading dot.
func ParseFormat(name string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimPrefix(name, "."))) {
	case FormatXLSX:
		return FormatXLSX, true
	case FormatICS:
		return FormatICS, true
	}
	return "", false
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatICS:
		return "text/calendar; charset=utf-8"
	}
	return "application/octet-stream"
}

// Write renders view in the requested format. loc only affects the spreadsheet, which shows
// local wall-clock times; calendar feeds always carry UTC instants.
func Write(w io.Writer, format Format, view application.ScheduleView, loc *time.Location) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, view, loc)
	case FormatICS:
		return WriteICS(w, view)
	}
	return fmt.Errorf("export: unsupported format %q", format)
}

// scheduledEntries returns the placed entries ordered by start time, then room order.
func scheduledEntries(view application.ScheduleView) []scheduler.Entry {
	roomOrder := make(map[string]int, len(view.Conference.Rooms))
	for i, room := range view.Conference.Rooms {
		roomOrder[room.Key()] = i
	}

	out := make([]scheduler.Entry, 0, len(view.Entries))
	for _, entry := range view.Entries {
		if entry.Scheduled() {
			out = append(out, entry)
		}
	}
	slices.SortStableFunc(out, func(a, b scheduler.Entry) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return roomOrder[a.RoomID] - roomOrder[b.RoomID]
	})
	return out
}

func unscheduledEntries(view application.ScheduleView) []scheduler.Entry {
	out := make([]scheduler.Entry, 0)
	for _, entry := range view.Entries {
		if !entry.Scheduled() {
			out = append(out, entry)
		}
	}
	return out
}

func roomName(view application.ScheduleView, roomID string) string {
	for _, room := range view.Conference.Rooms {
		if room.Key() == roomID {
			if room.Name != "" {
				return room.Name
			}
			return room.Key()
		}
	}
	return roomID
}

func paperTitle(view application.ScheduleView, paperID string) string {
	if paper, ok := view.Papers[paperID]; ok && paper.Title != "" {
		return paper.Title
	}
	return paperID
}
