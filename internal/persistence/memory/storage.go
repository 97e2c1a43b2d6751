// Package memory provides a process-local repository for tests, demos and the CLI.
// Each Storage owns its state; nothing is shared between instances.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/conference-scheduler/internal/persistence"
)

// Snapshot is a complete copy of a Storage's contents.
type Snapshot struct {
	Conferences []persistence.Conference
	Papers      []persistence.Paper
	Schedules   []persistence.Schedule
	Items       []persistence.ScheduleItem
}

// Storage keeps conferences, papers and schedules in maps guarded by a single lock, so every
// mutation is applied entirely or not at all.
type Storage struct {
	mu          sync.RWMutex
	conferences map[string]persistence.Conference
	papers      map[string][]persistence.Paper
	schedules   map[string]persistence.Schedule
	items       map[string][]persistence.ScheduleItem
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	s := &Storage{}
	s.resetLocked()
	return s
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Reset discards every record.
func (s *Storage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Storage) resetLocked() {
	s.conferences = make(map[string]persistence.Conference)
	s.papers = make(map[string][]persistence.Paper)
	s.schedules = make(map[string]persistence.Schedule)
	s.items = make(map[string][]persistence.ScheduleItem)
}

// Seed replaces the storage contents with the snapshot.
func (s *Storage) Seed(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	for _, conference := range snapshot.Conferences {
		s.conferences[conference.ID] = cloneConference(conference)
	}
	for _, paper := range snapshot.Papers {
		s.papers[paper.ConferenceID] = append(s.papers[paper.ConferenceID], paper)
	}
	for _, schedule := range snapshot.Schedules {
		s.schedules[schedule.ConferenceID] = schedule
	}
	for _, item := range snapshot.Items {
		s.items[item.ScheduleID] = append(s.items[item.ScheduleID], cloneItem(item))
	}
}

// Snapshot copies the storage contents. Slices are ordered by identifier so snapshots of
// equal stores compare equal.
func (s *Storage) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Snapshot
	for _, conference := range s.conferences {
		out.Conferences = append(out.Conferences, cloneConference(conference))
	}
	for _, papers := range s.papers {
		out.Papers = append(out.Papers, papers...)
	}
	for _, schedule := range s.schedules {
		out.Schedules = append(out.Schedules, schedule)
	}
	for _, items := range s.items {
		for _, item := range items {
			out.Items = append(out.Items, cloneItem(item))
		}
	}

	sort.Slice(out.Conferences, func(i, j int) bool { return out.Conferences[i].ID < out.Conferences[j].ID })
	sort.Slice(out.Papers, func(i, j int) bool { return out.Papers[i].ID < out.Papers[j].ID })
	sort.Slice(out.Schedules, func(i, j int) bool { return out.Schedules[i].ID < out.Schedules[j].ID })
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return out
}

// --- ConferenceRepository implementation ---

// SaveConference inserts or replaces a conference.
func (s *Storage) SaveConference(ctx context.Context, conference persistence.Conference) error {
	if conference.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.conferences[conference.ID]; ok && conference.CreatedAt.IsZero() {
		conference.CreatedAt = existing.CreatedAt
	}
	s.conferences[conference.ID] = cloneConference(conference)
	return nil
}

// GetConference retrieves a conference by ID.
func (s *Storage) GetConference(ctx context.Context, id string) (persistence.Conference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conference, ok := s.conferences[id]
	if !ok {
		return persistence.Conference{}, persistence.ErrNotFound
	}
	return cloneConference(conference), nil
}

// --- PaperRepository implementation ---

// ReplacePapers swaps the paper list of a conference.
func (s *Storage) ReplacePapers(ctx context.Context, conferenceID string, papers []persistence.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conferences[conferenceID]; !ok {
		return persistence.ErrForeignKeyViolation
	}

	replaced := make([]persistence.Paper, len(papers))
	for i, paper := range papers {
		paper.ConferenceID = conferenceID
		paper.Position = i
		replaced[i] = paper
	}
	s.papers[conferenceID] = replaced
	return nil
}

// GetAcceptedPapers returns the accepted papers of a conference in submission order.
func (s *Storage) GetAcceptedPapers(ctx context.Context, conferenceID string) ([]persistence.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accepted := make([]persistence.Paper, 0, len(s.papers[conferenceID]))
	for _, paper := range s.papers[conferenceID] {
		if paper.Status == "accepted" {
			accepted = append(accepted, paper)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].Position < accepted[j].Position })
	return accepted, nil
}

// --- ScheduleRepository implementation ---

// SaveDraft creates or bumps the conference's schedule and replaces its items.
func (s *Storage) SaveDraft(ctx context.Context, input persistence.DraftInput) (persistence.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, exists := s.schedules[input.ConferenceID]
	switch {
	case exists && schedule.Status == persistence.ScheduleStatusPublished:
		return persistence.Schedule{}, persistence.ErrConstraintViolation
	case exists && input.ExpectedVersion != nil && *input.ExpectedVersion != schedule.Version:
		return persistence.Schedule{}, persistence.ErrVersionConflict
	case exists:
		schedule.Version++
	case input.ExpectedVersion != nil:
		return persistence.Schedule{}, persistence.ErrScheduleNotFound
	case input.ScheduleID == "":
		return persistence.Schedule{}, persistence.ErrConstraintViolation
	default:
		schedule = persistence.Schedule{
			ID:           input.ScheduleID,
			ConferenceID: input.ConferenceID,
			Version:      1,
			CreatedAt:    input.Now,
		}
	}
	schedule.Status = persistence.ScheduleStatusDraft
	schedule.UpdatedAt = input.Now

	items := make([]persistence.ScheduleItem, len(input.Items))
	for i, item := range input.Items {
		item = cloneItem(item)
		item.ScheduleID = schedule.ID
		item.Position = i
		items[i] = item
	}

	s.schedules[input.ConferenceID] = schedule
	s.items[schedule.ID] = items
	return schedule, nil
}

// GetSchedule returns the schedule of a conference.
func (s *Storage) GetSchedule(ctx context.Context, conferenceID string) (persistence.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[conferenceID]
	if !ok {
		return persistence.Schedule{}, persistence.ErrNotFound
	}
	return schedule, nil
}

// GetScheduleItems returns the items of a schedule in stored order.
func (s *Storage) GetScheduleItems(ctx context.Context, scheduleID string) ([]persistence.ScheduleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.items[scheduleID]
	items := make([]persistence.ScheduleItem, len(stored))
	for i, item := range stored {
		items[i] = cloneItem(item)
	}
	return items, nil
}

// SaveSchedule moves the conference's schedule forward to the requested status. Requesting the
// stored status returns the schedule unchanged; requesting a lower one fails with
// ErrConstraintViolation.
func (s *Storage) SaveSchedule(ctx context.Context, input persistence.StatusInput) (persistence.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, ok := s.schedules[input.ConferenceID]
	if !ok {
		return persistence.Schedule{}, persistence.ErrScheduleNotFound
	}
	to, okTo := persistence.ScheduleStatusRank(input.Status)
	from, okFrom := persistence.ScheduleStatusRank(schedule.Status)
	switch {
	case !okTo || !okFrom || from > to:
		return persistence.Schedule{}, persistence.ErrConstraintViolation
	case from == to:
		return schedule, nil
	}
	schedule.Status = input.Status
	schedule.UpdatedAt = input.Now
	s.schedules[input.ConferenceID] = schedule
	return schedule, nil
}

// PublishSchedule is SaveSchedule with the published status.
func (s *Storage) PublishSchedule(ctx context.Context, input persistence.StatusInput) (persistence.Schedule, error) {
	input.Status = persistence.ScheduleStatusPublished
	return s.SaveSchedule(ctx, input)
}

func cloneConference(conference persistence.Conference) persistence.Conference {
	out := conference
	out.Rooms = make([]persistence.Room, len(conference.Rooms))
	for i, room := range conference.Rooms {
		room.Capacity = cloneInt(room.Capacity)
		room.Position = i
		out.Rooms[i] = room
	}
	return out
}

func cloneItem(item persistence.ScheduleItem) persistence.ScheduleItem {
	out := item
	out.RoomID = cloneString(item.RoomID)
	out.SlotID = cloneString(item.SlotID)
	out.Reason = cloneString(item.Reason)
	if item.Start != nil {
		start := *item.Start
		out.Start = &start
	}
	if item.End != nil {
		end := *item.End
		out.End = &end
	}
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
