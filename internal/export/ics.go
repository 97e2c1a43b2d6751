package export

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/conference-scheduler/internal/application"
)

const productID = "-//conference-scheduler//published schedule//EN"

// WriteICS writes one VEVENT per placed talk. UIDs derive from entry IDs so re-exports of the
// same schedule update calendar entries in place.
func WriteICS(w io.Writer, view application.ScheduleView) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	if view.Conference.Name != "" {
		cal.Props.SetText("X-WR-CALNAME", view.Conference.Name)
	}

	stamp := view.Schedule.UpdatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, entry := range scheduledEntries(view) {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", entry.ID, view.Conference.ID))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, entry.Start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, entry.End.UTC())
		event.Props.SetText(ical.PropSummary, paperTitle(view, entry.PaperID))
		event.Props.SetText(ical.PropLocation, roomName(view, entry.RoomID))
		event.Props.SetText(ical.PropDescription, "Paper "+entry.PaperID)
		event.Props.SetText(ical.PropStatus, "CONFIRMED")
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("export: encode calendar: %w", err)
	}
	return nil
}
