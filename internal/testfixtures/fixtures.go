package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/scheduler"
)

var (
	conferenceCounter uint64
	paperCounter      uint64
	scheduleCounter   uint64
)

var (
	referenceTime   = time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	referenceWindow = scheduler.Window{
		Start: time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC),
	}
)

// ReferenceTime returns the canonical "now" used by fixtures. It precedes ReferenceWindow.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceWindow returns the default conference window: 09:00 to 12:00 UTC on 2025-05-01.
func ReferenceWindow() scheduler.Window {
	return referenceWindow
}

// ----------------------------- Conference fixtures -----------------------------

// ConferenceFixture represents a deterministic conference with ordered rooms.
type ConferenceFixture struct {
	ID                  string
	Name                string
	WindowStart         time.Time
	WindowEnd           time.Time
	SlotDurationMinutes float64
	Rooms               []scheduler.Room
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ConferenceOption configures the generated conference fixture.
type ConferenceOption func(*ConferenceFixture)

// NewConferenceFixture returns a conference spanning ReferenceWindow with two rooms and
// 30 minute slots, i.e. twelve slots in total.
func NewConferenceFixture(opts ...ConferenceOption) ConferenceFixture {
	idx := atomic.AddUint64(&conferenceCounter, 1)
	fixture := ConferenceFixture{
		ID:                  fmt.Sprintf("conf-%03d", idx),
		Name:                fmt.Sprintf("Conference %03d", idx),
		WindowStart:         referenceWindow.Start,
		WindowEnd:           referenceWindow.End,
		SlotDurationMinutes: 30,
		Rooms: []scheduler.Room{
			{ID: "room-a", Name: "Room A"},
			{ID: "room-b", Name: "Room B"},
		},
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithConferenceID overrides the generated conference ID.
func WithConferenceID(id string) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.ID = id
	}
}

// WithConferenceName overrides the generated name.
func WithConferenceName(name string) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.Name = name
	}
}

// WithConferenceWindow sets the conference time window.
func WithConferenceWindow(start, end time.Time) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.WindowStart = start
		f.WindowEnd = end
	}
}

// WithSlotDuration sets the slot duration in minutes.
func WithSlotDuration(minutes float64) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.SlotDurationMinutes = minutes
	}
}

// WithRooms replaces the room list.
func WithRooms(rooms ...scheduler.Room) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.Rooms = append([]scheduler.Room(nil), rooms...)
	}
}

// WithRoomIDs replaces the room list with rooms named after their ids.
func WithRoomIDs(ids ...string) ConferenceOption {
	return func(f *ConferenceFixture) {
		f.Rooms = make([]scheduler.Room, 0, len(ids))
		for _, id := range ids {
			f.Rooms = append(f.Rooms, scheduler.Room{ID: id, Name: id})
		}
	}
}

// Window returns the conference window.
func (f ConferenceFixture) Window() scheduler.Window {
	return scheduler.Window{Start: f.WindowStart, End: f.WindowEnd}
}

// Application returns the fixture as an application.Conference value.
func (f ConferenceFixture) Application() application.Conference {
	return application.Conference{
		ID:                  f.ID,
		Name:                f.Name,
		WindowStart:         f.WindowStart,
		WindowEnd:           f.WindowEnd,
		SlotDurationMinutes: f.SlotDurationMinutes,
		Rooms:               copyRooms(f.Rooms),
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

// Input returns the fixture as an application.ConferenceInput.
func (f ConferenceFixture) Input() application.ConferenceInput {
	return application.ConferenceInput{
		ID:                  f.ID,
		Name:                f.Name,
		WindowStart:         f.WindowStart,
		WindowEnd:           f.WindowEnd,
		SlotDurationMinutes: f.SlotDurationMinutes,
		Rooms:               copyRooms(f.Rooms),
	}
}

// Persistence returns the fixture as a persistence.Conference value.
func (f ConferenceFixture) Persistence() persistence.Conference {
	rooms := make([]persistence.Room, len(f.Rooms))
	for i, room := range f.Rooms {
		rooms[i] = persistence.Room{ID: room.ID, Name: room.Name, Capacity: copyIntPtr(room.Capacity), Position: i}
	}
	return persistence.Conference{
		ID:                  f.ID,
		Name:                f.Name,
		WindowStart:         f.WindowStart,
		WindowEnd:           f.WindowEnd,
		SlotDurationMinutes: f.SlotDurationMinutes,
		Rooms:               rooms,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

// ----------------------------- Paper fixtures -----------------------------

// PaperFixture represents a deterministic paper submission.
type PaperFixture struct {
	ID               string
	ConferenceID     string
	Title            string
	Status           scheduler.PaperStatus
	MetadataComplete bool
}

// PaperOption configures the generated paper fixture.
type PaperOption func(*PaperFixture)

// NewPaperFixture returns an accepted paper with complete metadata.
func NewPaperFixture(opts ...PaperOption) PaperFixture {
	idx := atomic.AddUint64(&paperCounter, 1)
	fixture := PaperFixture{
		ID:               fmt.Sprintf("paper-%03d", idx),
		Title:            fmt.Sprintf("Paper %03d", idx),
		Status:           scheduler.PaperAccepted,
		MetadataComplete: true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// NewAcceptedPapers returns n accepted papers of conferenceID with ids "<prefix>-1".."<prefix>-n".
func NewAcceptedPapers(conferenceID, prefix string, n int) []PaperFixture {
	papers := make([]PaperFixture, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		papers = append(papers, NewPaperFixture(WithPaperID(id), WithPaperConferenceID(conferenceID), WithPaperTitle("Talk "+id)))
	}
	return papers
}

// WithPaperID overrides the generated paper ID.
func WithPaperID(id string) PaperOption {
	return func(f *PaperFixture) {
		f.ID = id
	}
}

// WithPaperConferenceID sets the owning conference.
func WithPaperConferenceID(id string) PaperOption {
	return func(f *PaperFixture) {
		f.ConferenceID = id
	}
}

// WithPaperTitle overrides the generated title.
func WithPaperTitle(title string) PaperOption {
	return func(f *PaperFixture) {
		f.Title = title
	}
}

// WithPaperStatus sets the review status.
func WithPaperStatus(status scheduler.PaperStatus) PaperOption {
	return func(f *PaperFixture) {
		f.Status = status
	}
}

// WithIncompleteMetadata marks the paper's metadata as incomplete.
func WithIncompleteMetadata() PaperOption {
	return func(f *PaperFixture) {
		f.MetadataComplete = false
	}
}

// Scheduler returns the fixture as a scheduler.Paper value.
func (f PaperFixture) Scheduler() scheduler.Paper {
	return scheduler.Paper{
		ID:               f.ID,
		ConferenceID:     f.ConferenceID,
		Title:            f.Title,
		Status:           f.Status,
		MetadataComplete: f.MetadataComplete,
	}
}

// Input returns the fixture as an application.PaperInput.
func (f PaperFixture) Input() application.PaperInput {
	return application.PaperInput{
		ID:               f.ID,
		Title:            f.Title,
		Status:           f.Status,
		MetadataComplete: f.MetadataComplete,
	}
}

// Persistence returns the fixture as a persistence.Paper stored at position.
func (f PaperFixture) Persistence(position int) persistence.Paper {
	return persistence.Paper{
		ID:               f.ID,
		ConferenceID:     f.ConferenceID,
		Title:            f.Title,
		Status:           string(f.Status),
		MetadataComplete: f.MetadataComplete,
		Position:         position,
	}
}

// ----------------------------- Schedule fixtures -----------------------------

// ScheduleFixture represents a stored schedule together with its entries.
type ScheduleFixture struct {
	ID           string
	ConferenceID string
	Status       application.ScheduleStatus
	Version      int64
	Entries      []scheduler.Entry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns an empty draft schedule at version 1.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	fixture := ScheduleFixture{
		ID:        fmt.Sprintf("schedule-%03d", idx),
		Status:    application.ScheduleStatusDraft,
		Version:   1,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	for i := range fixture.Entries {
		fixture.Entries[i].ScheduleID = fixture.ID
	}
	return fixture
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ID = id
	}
}

// WithScheduleConferenceID sets the owning conference.
func WithScheduleConferenceID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ConferenceID = id
	}
}

// WithScheduleStatus sets the lifecycle status.
func WithScheduleStatus(status application.ScheduleStatus) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Status = status
	}
}

// WithScheduleVersion sets the stored version.
func WithScheduleVersion(version int64) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Version = version
	}
}

// WithScheduledEntry appends an entry placing paperID in roomID for [start, end).
func WithScheduledEntry(id, paperID, roomID string, start, end time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Entries = append(f.Entries, scheduler.Entry{
			ID:      id,
			PaperID: paperID,
			RoomID:  roomID,
			SlotID:  scheduler.SlotID(roomID, start),
			Start:   start,
			End:     end,
			Status:  scheduler.EntryScheduled,
		})
	}
}

// WithUnscheduledEntry appends an entry recording why paperID has no slot.
func WithUnscheduledEntry(id, paperID string, reason scheduler.Reason) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Entries = append(f.Entries, scheduler.Entry{
			ID:      id,
			PaperID: paperID,
			Status:  scheduler.EntryUnscheduled,
			Reason:  reason,
		})
	}
}

// Application returns the fixture as an application.Schedule value.
func (f ScheduleFixture) Application() application.Schedule {
	return application.Schedule{
		ID:           f.ID,
		ConferenceID: f.ConferenceID,
		Status:       f.Status,
		Version:      f.Version,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Schedule value.
func (f ScheduleFixture) Persistence() persistence.Schedule {
	return persistence.Schedule{
		ID:           f.ID,
		ConferenceID: f.ConferenceID,
		Status:       string(f.Status),
		Version:      f.Version,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Items returns the fixture's entries as stored schedule items.
func (f ScheduleFixture) Items() []persistence.ScheduleItem {
	items := make([]persistence.ScheduleItem, 0, len(f.Entries))
	for i, entry := range f.Entries {
		item := persistence.ScheduleItem{
			ID:         entry.ID,
			ScheduleID: f.ID,
			PaperID:    entry.PaperID,
			Status:     string(entry.Status),
			Position:   i,
		}
		if entry.Scheduled() {
			roomID, slotID := entry.RoomID, entry.SlotID
			start, end := entry.Start, entry.End
			item.RoomID = &roomID
			item.SlotID = &slotID
			item.Start = &start
			item.End = &end
		}
		if entry.Reason != scheduler.ReasonNone {
			reason := entry.Reason.String()
			item.Reason = &reason
		}
		items = append(items, item)
	}
	return items
}

// ----------------------------- Storage seeding -----------------------------

// Snapshot assembles a memory.Snapshot holding conference, its papers in order and, when
// schedule is non-nil, the schedule with its entries.
func Snapshot(conference ConferenceFixture, papers []PaperFixture, schedule *ScheduleFixture) memory.Snapshot {
	snapshot := memory.Snapshot{Conferences: []persistence.Conference{conference.Persistence()}}
	for i, paper := range papers {
		if paper.ConferenceID == "" {
			paper.ConferenceID = conference.ID
		}
		snapshot.Papers = append(snapshot.Papers, paper.Persistence(i))
	}
	if schedule != nil {
		stored := *schedule
		if stored.ConferenceID == "" {
			stored.ConferenceID = conference.ID
		}
		snapshot.Schedules = []persistence.Schedule{stored.Persistence()}
		snapshot.Items = stored.Items()
	}
	return snapshot
}

func copyRooms(rooms []scheduler.Room) []scheduler.Room {
	out := make([]scheduler.Room, len(rooms))
	for i, room := range rooms {
		room.Capacity = copyIntPtr(room.Capacity)
		out[i] = room
	}
	return out
}

func copyIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
