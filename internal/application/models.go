package application

import (
	"time"

	"github.com/example/conference-scheduler/internal/scheduler"
)

// Conference is the scheduling unit: a time window, ordered rooms and a slot duration.
type Conference struct {
	ID                  string
	Name                string
	WindowStart         time.Time
	WindowEnd           time.Time
	SlotDurationMinutes float64
	Rooms               []scheduler.Room
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Window returns the conference time window.
func (c Conference) Window() scheduler.Window {
	return scheduler.Window{Start: c.WindowStart, End: c.WindowEnd}
}

// ConferenceInput captures caller provided conference fields.
type ConferenceInput struct {
	ID                  string
	Name                string
	WindowStart         time.Time
	WindowEnd           time.Time
	SlotDurationMinutes float64
	Rooms               []scheduler.Room
}

// ScheduleStatus is the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "draft"
	ScheduleStatusSaved     ScheduleStatus = "saved"
	ScheduleStatusPublished ScheduleStatus = "published"
)

// Schedule is the versioned container of a conference's allocation.
type Schedule struct {
	ID           string
	ConferenceID string
	Status       ScheduleStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScheduleView is a read projection of a schedule and its entries.
type ScheduleView struct {
	Conference Conference
	Schedule   Schedule
	Entries    []scheduler.Entry
	// Papers holds the accepted papers of the conference keyed by id.
	Papers map[string]scheduler.Paper
}

// DraftInput replaces the entries of a conference's schedule and moves it to draft.
type DraftInput struct {
	ConferenceID string
	ScheduleID   string
	Entries      []scheduler.Entry
	// ExpectedVersion, when set, makes the write fail with a version conflict unless the
	// stored version still matches.
	ExpectedVersion *int64
	At              time.Time
}

// StatusChange moves a conference's schedule to Status.
type StatusChange struct {
	ConferenceID string
	Status       ScheduleStatus
	At           time.Time
}

// GenerateInput is a conference with the papers to allocate.
type GenerateInput struct {
	Conference Conference
	Papers     []scheduler.Paper
}

// GenerateResult reports an allocation pass. When OK is false Reason explains why and no
// entries are returned.
type GenerateResult struct {
	OK            bool
	Reason        scheduler.Reason
	Items         []scheduler.Entry
	Unscheduled   []scheduler.Entry
	TotalSlots    int
	TotalAccepted int
}

// GenerateDraftResult is a GenerateResult that was persisted as the conference's draft.
type GenerateDraftResult struct {
	GenerateResult
	Schedule *Schedule
}

// UpdateEntryParams describes a single-entry edit.
type UpdateEntryParams struct {
	ConferenceID    string
	EntryID         string
	RoomID          *string
	Start           *time.Time
	End             *time.Time
	ScheduleVersion int64
}

// EditResult reports an entry edit. On success Schedule and Entries hold the committed
// state; on a room conflict ConflictEntry holds the colliding entry.
type EditResult struct {
	OK            bool
	Reason        scheduler.Reason
	Schedule      *Schedule
	Entries       []scheduler.Entry
	ConflictEntry *scheduler.Entry
}

// PaperInput captures a paper registered for a conference.
type PaperInput struct {
	ID               string
	Title            string
	Status           scheduler.PaperStatus
	MetadataComplete bool
}
