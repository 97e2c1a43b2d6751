package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/scheduler"
)

var start = time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Repository {
	t.Helper()
	repo := New(memory.New())
	capacity := 50
	require.NoError(t, repo.SaveConference(context.Background(), application.Conference{
		ID:                  "conf-1",
		Name:                "GopherCon",
		WindowStart:         start,
		WindowEnd:           start.Add(time.Hour),
		SlotDurationMinutes: 30,
		Rooms:               []scheduler.Room{{ID: "r1", Name: "Main", Capacity: &capacity}, {Name: "Annex"}},
	}))
	return repo
}

func TestRepository_ConferenceAndPapers(t *testing.T) {
	t.Parallel()

	repo := seeded(t)
	conference, err := repo.GetConference(context.Background(), "conf-1")
	require.NoError(t, err)
	require.Len(t, conference.Rooms, 2)
	assert.Equal(t, "Annex", conference.Rooms[1].Key())
	assert.Equal(t, 50, *conference.Rooms[0].Capacity)

	require.NoError(t, repo.ReplacePapers(context.Background(), "conf-1", []scheduler.Paper{
		{ID: "p2", Title: "Second", Status: scheduler.PaperAccepted, MetadataComplete: true},
		{ID: "p9", Title: "Rejected", Status: scheduler.PaperRejected},
		{ID: "p1", Title: "First", Status: scheduler.PaperAccepted},
	}))
	papers, err := repo.GetAcceptedPapers(context.Background(), "conf-1")
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "p2", papers[0].ID)
	assert.Equal(t, scheduler.PaperAccepted, papers[1].Status)
	assert.False(t, papers[1].MetadataComplete)

	_, err = repo.GetConference(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestRepository_EntriesRoundTrip(t *testing.T) {
	t.Parallel()

	repo := seeded(t)
	entries := []scheduler.Entry{
		{ID: "e1", PaperID: "p1", RoomID: "r1", SlotID: scheduler.SlotID("r1", start), Start: start, End: start.Add(30 * time.Minute), Status: scheduler.EntryScheduled},
		{ID: "e2", PaperID: "p2", RoomID: "stale", Status: scheduler.EntryUnscheduled, Reason: scheduler.ReasonCapacityShortfall},
	}

	schedule, err := repo.SaveDraft(context.Background(), application.DraftInput{
		ConferenceID: "conf-1",
		ScheduleID:   "sched-1",
		Entries:      entries,
		At:           start,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), schedule.Version)
	assert.Equal(t, application.ScheduleStatusDraft, schedule.Status)

	got, err := repo.GetScheduleItems(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].RoomID)
	assert.True(t, got[0].Start.Equal(start))
	assert.Equal(t, "sched-1", got[0].ScheduleID)
	assert.Empty(t, got[1].RoomID, "unscheduled entries never carry a room")
	assert.Equal(t, scheduler.ReasonCapacityShortfall, got[1].Reason)

	stale := int64(7)
	_, err = repo.SaveDraft(context.Background(), application.DraftInput{
		ConferenceID:    "conf-1",
		Entries:         entries,
		ExpectedVersion: &stale,
		At:              start,
	})
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)

	published, err := repo.PublishSchedule(context.Background(), application.StatusChange{ConferenceID: "conf-1", At: start})
	require.NoError(t, err)
	assert.Equal(t, application.ScheduleStatusPublished, published.Status)

	_, err = repo.SaveSchedule(context.Background(), application.StatusChange{ConferenceID: "other", Status: application.ScheduleStatusSaved})
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)
}

func TestRepository_ScheduleServiceOverMemory(t *testing.T) {
	t.Parallel()

	repo := seeded(t)
	require.NoError(t, repo.ReplacePapers(context.Background(), "conf-1", []scheduler.Paper{
		{ID: "p1", Status: scheduler.PaperAccepted, MetadataComplete: true},
		{ID: "p2", Status: scheduler.PaperAccepted, MetadataComplete: true},
	}))

	var n int
	ids := func() string { n++; return fmt.Sprintf("id-%d", n) }
	svc := application.NewScheduleService(repo, application.Hooks{}, ids, func() time.Time { return start })

	draft, err := svc.GenerateDraft(context.Background(), "conf-1")
	require.NoError(t, err)
	require.True(t, draft.OK)
	assert.Equal(t, 4, draft.TotalSlots)

	entryID := draft.Items[1].ID
	annex := "Annex"
	result, err := svc.UpdateScheduleEntry(context.Background(), application.UpdateEntryParams{
		ConferenceID:    "conf-1",
		EntryID:         entryID,
		RoomID:          &annex,
		ScheduleVersion: draft.Schedule.Version,
	})
	require.NoError(t, err)
	require.True(t, result.OK, "edit rejected: %s", result.Reason)
	assert.Equal(t, int64(2), result.Schedule.Version)

	published, err := svc.Publish(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, application.ScheduleStatusPublished, published.Status)

	view, err := svc.GetPublishedSchedule(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "Annex", view.Entries[1].RoomID)
}

// publishingAfterRead publishes the schedule right after the first GetSchedule read, so the
// publish lands between a service's read and its status write.
type publishingAfterRead struct {
	*Repository
	once sync.Once
}

func (r *publishingAfterRead) GetSchedule(ctx context.Context, conferenceID string) (application.Schedule, error) {
	schedule, err := r.Repository.GetSchedule(ctx, conferenceID)
	if err != nil {
		return schedule, err
	}
	r.once.Do(func() {
		_, err = r.Repository.PublishSchedule(ctx, application.StatusChange{ConferenceID: conferenceID, At: start})
	})
	return schedule, err
}

func TestRepository_SaveDoesNotUndoConcurrentPublish(t *testing.T) {
	t.Parallel()

	repo := seeded(t)
	require.NoError(t, repo.ReplacePapers(context.Background(), "conf-1", []scheduler.Paper{
		{ID: "p1", Status: scheduler.PaperAccepted, MetadataComplete: true},
	}))
	var n int
	ids := func() string { n++; return fmt.Sprintf("id-%d", n) }
	clock := func() time.Time { return start }

	draft, err := application.NewScheduleService(repo, application.Hooks{}, ids, clock).GenerateDraft(context.Background(), "conf-1")
	require.NoError(t, err)
	require.True(t, draft.OK)

	racing := application.NewScheduleService(&publishingAfterRead{Repository: repo}, application.Hooks{}, ids, clock)
	_, err = racing.SaveSchedule(context.Background(), "conf-1")
	assert.ErrorIs(t, err, application.ErrNotFound)
	assert.Equal(t, scheduler.ReasonNotFound, application.ReasonOf(err))

	stored, err := repo.GetSchedule(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, application.ScheduleStatusPublished, stored.Status)
}
