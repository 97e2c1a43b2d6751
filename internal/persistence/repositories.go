package persistence

import "context"

// ConferenceRepository stores conferences with their ordered rooms.
type ConferenceRepository interface {
	SaveConference(ctx context.Context, conference Conference) error
	GetConference(ctx context.Context, id string) (Conference, error)
}

// PaperRepository stores conference papers.
type PaperRepository interface {
	ReplacePapers(ctx context.Context, conferenceID string, papers []Paper) error
	GetAcceptedPapers(ctx context.Context, conferenceID string) ([]Paper, error)
}

// ScheduleRepository stores schedules and their items.
//
// SaveDraft creates the schedule at version 1 or bumps an existing one by exactly 1, sets
// status draft, and replaces every item in one atomic step. SaveSchedule returns
// ErrScheduleNotFound when the conference has no schedule.
type ScheduleRepository interface {
	SaveDraft(ctx context.Context, input DraftInput) (Schedule, error)
	GetSchedule(ctx context.Context, conferenceID string) (Schedule, error)
	GetScheduleItems(ctx context.Context, scheduleID string) ([]ScheduleItem, error)
	SaveSchedule(ctx context.Context, input StatusInput) (Schedule, error)
	PublishSchedule(ctx context.Context, input StatusInput) (Schedule, error)
}

// Store bundles every repository a scheduler deployment needs.
type Store interface {
	ConferenceRepository
	PaperRepository
	ScheduleRepository
	Close() error
}
