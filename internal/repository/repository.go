// Package repository adapts a persistence.Store to the repository interfaces the application
// services consume, converting between stored records and domain values.
package repository

import (
	"context"
	"fmt"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// Repository exposes a persistence.Store through application types.
type Repository struct {
	store persistence.Store
}

var (
	_ application.ScheduleRepository   = (*Repository)(nil)
	_ application.ConferenceRepository = (*Repository)(nil)
)

// New wraps store.
func New(store persistence.Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying store.
func (r *Repository) Store() persistence.Store {
	return r.store
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}

// SaveConference stores a conference with its ordered rooms.
func (r *Repository) SaveConference(ctx context.Context, conference application.Conference) error {
	return r.store.SaveConference(ctx, toConferenceRecord(conference))
}

// GetConference loads a conference.
func (r *Repository) GetConference(ctx context.Context, id string) (application.Conference, error) {
	record, err := r.store.GetConference(ctx, id)
	if err != nil {
		return application.Conference{}, err
	}
	return fromConferenceRecord(record), nil
}

// ReplacePapers stores the paper list of a conference in the given order.
func (r *Repository) ReplacePapers(ctx context.Context, conferenceID string, papers []scheduler.Paper) error {
	records := make([]persistence.Paper, len(papers))
	for i, paper := range papers {
		records[i] = persistence.Paper{
			ID:               paper.ID,
			ConferenceID:     conferenceID,
			Title:            paper.Title,
			Status:           string(paper.Status),
			MetadataComplete: paper.MetadataComplete,
			Position:         i,
		}
	}
	return r.store.ReplacePapers(ctx, conferenceID, records)
}

// GetAcceptedPapers loads the accepted papers of a conference in registration order.
func (r *Repository) GetAcceptedPapers(ctx context.Context, conferenceID string) ([]scheduler.Paper, error) {
	records, err := r.store.GetAcceptedPapers(ctx, conferenceID)
	if err != nil {
		return nil, err
	}
	papers := make([]scheduler.Paper, len(records))
	for i, record := range records {
		papers[i] = scheduler.Paper{
			ID:               record.ID,
			ConferenceID:     record.ConferenceID,
			Title:            record.Title,
			Status:           scheduler.PaperStatus(record.Status),
			MetadataComplete: record.MetadataComplete,
		}
	}
	return papers, nil
}

// SaveDraft replaces the conference's draft entries.
func (r *Repository) SaveDraft(ctx context.Context, input application.DraftInput) (application.Schedule, error) {
	items := make([]persistence.ScheduleItem, len(input.Entries))
	for i, entry := range input.Entries {
		items[i] = toItemRecord(entry, i)
	}
	record, err := r.store.SaveDraft(ctx, persistence.DraftInput{
		ConferenceID:    input.ConferenceID,
		ScheduleID:      input.ScheduleID,
		Items:           items,
		ExpectedVersion: input.ExpectedVersion,
		Now:             input.At,
	})
	if err != nil {
		return application.Schedule{}, err
	}
	return fromScheduleRecord(record), nil
}

// GetSchedule loads the conference's schedule.
func (r *Repository) GetSchedule(ctx context.Context, conferenceID string) (application.Schedule, error) {
	record, err := r.store.GetSchedule(ctx, conferenceID)
	if err != nil {
		return application.Schedule{}, err
	}
	return fromScheduleRecord(record), nil
}

// GetScheduleItems loads the entries of a schedule in stored order.
func (r *Repository) GetScheduleItems(ctx context.Context, scheduleID string) ([]scheduler.Entry, error) {
	records, err := r.store.GetScheduleItems(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	entries := make([]scheduler.Entry, len(records))
	for i, record := range records {
		entry, convErr := fromItemRecord(record)
		if convErr != nil {
			return nil, convErr
		}
		entries[i] = entry
	}
	return entries, nil
}

// SaveSchedule writes a status change.
func (r *Repository) SaveSchedule(ctx context.Context, change application.StatusChange) (application.Schedule, error) {
	record, err := r.store.SaveSchedule(ctx, persistence.StatusInput{
		ConferenceID: change.ConferenceID,
		Status:       string(change.Status),
		Now:          change.At,
	})
	if err != nil {
		return application.Schedule{}, err
	}
	return fromScheduleRecord(record), nil
}

// PublishSchedule marks the conference's schedule published.
func (r *Repository) PublishSchedule(ctx context.Context, change application.StatusChange) (application.Schedule, error) {
	record, err := r.store.PublishSchedule(ctx, persistence.StatusInput{
		ConferenceID: change.ConferenceID,
		Status:       persistence.ScheduleStatusPublished,
		Now:          change.At,
	})
	if err != nil {
		return application.Schedule{}, err
	}
	return fromScheduleRecord(record), nil
}

func toConferenceRecord(conference application.Conference) persistence.Conference {
	rooms := make([]persistence.Room, len(conference.Rooms))
	for i, room := range conference.Rooms {
		rooms[i] = persistence.Room{ID: room.ID, Name: room.Name, Capacity: room.Capacity, Position: i}
	}
	return persistence.Conference{
		ID:                  conference.ID,
		Name:                conference.Name,
		WindowStart:         conference.WindowStart,
		WindowEnd:           conference.WindowEnd,
		SlotDurationMinutes: conference.SlotDurationMinutes,
		Rooms:               rooms,
		CreatedAt:           conference.CreatedAt,
		UpdatedAt:           conference.UpdatedAt,
	}
}

func fromConferenceRecord(record persistence.Conference) application.Conference {
	rooms := make([]scheduler.Room, len(record.Rooms))
	for i, room := range record.Rooms {
		rooms[i] = scheduler.Room{ID: room.ID, Name: room.Name, Capacity: room.Capacity}
	}
	return application.Conference{
		ID:                  record.ID,
		Name:                record.Name,
		WindowStart:         record.WindowStart,
		WindowEnd:           record.WindowEnd,
		SlotDurationMinutes: record.SlotDurationMinutes,
		Rooms:               rooms,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func fromScheduleRecord(record persistence.Schedule) application.Schedule {
	return application.Schedule{
		ID:           record.ID,
		ConferenceID: record.ConferenceID,
		Status:       application.ScheduleStatus(record.Status),
		Version:      record.Version,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

// toItemRecord stores placement columns only for scheduled entries.
func toItemRecord(entry scheduler.Entry, position int) persistence.ScheduleItem {
	item := persistence.ScheduleItem{
		ID:         entry.ID,
		ScheduleID: entry.ScheduleID,
		PaperID:    entry.PaperID,
		Status:     string(entry.Status),
		Position:   position,
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
	return item
}

func fromItemRecord(item persistence.ScheduleItem) (scheduler.Entry, error) {
	entry := scheduler.Entry{
		ID:         item.ID,
		ScheduleID: item.ScheduleID,
		PaperID:    item.PaperID,
		Status:     scheduler.EntryStatus(item.Status),
	}
	if item.RoomID != nil {
		entry.RoomID = *item.RoomID
	}
	if item.SlotID != nil {
		entry.SlotID = *item.SlotID
	}
	if item.Start != nil {
		entry.Start = *item.Start
	}
	if item.End != nil {
		entry.End = *item.End
	}
	if item.Reason != nil {
		reason, ok := scheduler.ParseReason(*item.Reason)
		if !ok {
			return scheduler.Entry{}, fmt.Errorf("schedule item %s: unknown reason %q", item.ID, *item.Reason)
		}
		entry.Reason = reason
	}
	return entry, nil
}
