package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	store, err := Open(context.Background(), InMemoryConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(value string) *string { return &value }

func TestStoreConferenceAndPapers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	capacity := 120
	conference := persistence.Conference{
		ID:                  "conf-1",
		Name:                "SysConf",
		WindowStart:         time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		WindowEnd:           time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
		SlotDurationMinutes: 30,
		Rooms: []persistence.Room{
			{ID: "hall-b", Name: "Hall B", Capacity: &capacity},
			{ID: "hall-a", Name: "Hall A"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveConference(ctx, conference))

	fetched, err := store.GetConference(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, conference.WindowStart, fetched.WindowStart)
	assert.Equal(t, 30.0, fetched.SlotDurationMinutes)
	require.Len(t, fetched.Rooms, 2)
	assert.Equal(t, "hall-b", fetched.Rooms[0].ID)
	require.NotNil(t, fetched.Rooms[0].Capacity)
	assert.Equal(t, 120, *fetched.Rooms[0].Capacity)
	assert.Nil(t, fetched.Rooms[1].Capacity)

	conference.Name = "SysConf 2025"
	conference.Rooms = conference.Rooms[:1]
	conference.CreatedAt = now.Add(time.Hour)
	require.NoError(t, store.SaveConference(ctx, conference))
	fetched, err = store.GetConference(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "SysConf 2025", fetched.Name)
	assert.Len(t, fetched.Rooms, 1)
	assert.Equal(t, now, fetched.CreatedAt, "created_at survives updates")

	_, err = store.GetConference(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	papers := []persistence.Paper{
		{ID: "p3", Status: "accepted", MetadataComplete: true},
		{ID: "p1", Status: "rejected", MetadataComplete: true},
		{ID: "p2", Status: "accepted"},
	}
	require.NoError(t, store.ReplacePapers(ctx, "conf-1", papers))
	accepted, err := store.GetAcceptedPapers(ctx, "conf-1")
	require.NoError(t, err)
	require.Len(t, accepted, 2)
	assert.Equal(t, "p3", accepted[0].ID)
	assert.True(t, accepted[0].MetadataComplete)
	assert.Equal(t, "p2", accepted[1].ID)
	assert.False(t, accepted[1].MetadataComplete)

	err = store.ReplacePapers(ctx, "missing", papers)
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
}

func TestStoreDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveConference(ctx, persistence.Conference{
		ID:                  "conf-1",
		WindowStart:         now,
		WindowEnd:           now.Add(time.Hour),
		SlotDurationMinutes: 30,
		CreatedAt:           now,
		UpdatedAt:           now,
	}))

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	items := []persistence.ScheduleItem{
		{ID: "item-1", PaperID: "p1", RoomID: strPtr("hall-a"), SlotID: strPtr("hall-a@2025-06-10T09:00:00Z"), Start: &start, End: &end, Status: "scheduled"},
		{ID: "item-2", PaperID: "p2", Status: "unscheduled", Reason: strPtr("capacity_shortfall")},
	}

	schedule, err := store.SaveDraft(ctx, persistence.DraftInput{
		ConferenceID: "conf-1",
		ScheduleID:   "sched-1",
		Items:        items,
		Now:          now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), schedule.Version)
	assert.Equal(t, persistence.ScheduleStatusDraft, schedule.Status)

	stored, err := store.GetScheduleItems(ctx, "sched-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, start, *stored[0].Start)
	assert.Equal(t, "hall-a", *stored[0].RoomID)
	assert.Nil(t, stored[1].RoomID)
	assert.Equal(t, "capacity_shortfall", *stored[1].Reason)

	stale := int64(0)
	_, err = store.SaveDraft(ctx, persistence.DraftInput{ConferenceID: "conf-1", Items: items[:1], ExpectedVersion: &stale, Now: now})
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)
	stored, err = store.GetScheduleItems(ctx, "sched-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "rejected draft leaves items untouched")

	current := int64(1)
	schedule, err = store.SaveDraft(ctx, persistence.DraftInput{ConferenceID: "conf-1", Items: items[:1], ExpectedVersion: &current, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(2), schedule.Version)
	assert.Equal(t, "sched-1", schedule.ID)

	saved, err := store.SaveSchedule(ctx, persistence.StatusInput{ConferenceID: "conf-1", Status: persistence.ScheduleStatusSaved, Now: now})
	require.NoError(t, err)
	assert.Equal(t, persistence.ScheduleStatusSaved, saved.Status)
	assert.Equal(t, int64(2), saved.Version)

	published, err := store.PublishSchedule(ctx, persistence.StatusInput{ConferenceID: "conf-1", Now: now})
	require.NoError(t, err)
	assert.Equal(t, persistence.ScheduleStatusPublished, published.Status)

	_, err = store.SaveSchedule(ctx, persistence.StatusInput{ConferenceID: "conf-1", Status: persistence.ScheduleStatusSaved, Now: now.Add(time.Minute)})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation, "saving must not lower a published schedule")
	schedule, err = store.GetSchedule(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, persistence.ScheduleStatusPublished, schedule.Status)

	again, err := store.PublishSchedule(ctx, persistence.StatusInput{ConferenceID: "conf-1", Now: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, published.UpdatedAt, again.UpdatedAt, "republishing leaves the row untouched")

	_, err = store.SaveDraft(ctx, persistence.DraftInput{ConferenceID: "conf-1", Items: items, Now: now})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

	_, err = store.PublishSchedule(ctx, persistence.StatusInput{ConferenceID: "other", Now: now})
	assert.ErrorIs(t, err, persistence.ErrScheduleNotFound)

	_, err = store.GetSchedule(ctx, "other")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestOpenFileDatabaseReappliesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "data", "scheduler.db"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := Open(ctx, cfg, logger)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(ctx, cfg, logger)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"constraint failed: UNIQUE constraint failed: schedules.conference_id (2067)", persistence.ErrDuplicate},
		{"constraint failed: FOREIGN KEY constraint failed (787)", persistence.ErrForeignKeyViolation},
		{"constraint failed: CHECK constraint failed: status (275)", persistence.ErrConstraintViolation},
		{"database is locked (5) (SQLITE_BUSY)", sqlstore.ErrBusy},
		{"no such table: papers", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(errors.New(tt.msg)), tt.msg)
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig("scheduler.db").Validate())
	assert.Error(t, Config{}.Validate())

	cfg := InMemoryConfig()
	cfg.JournalMode = "SIDEWAYS"
	assert.Error(t, cfg.Validate())
}
