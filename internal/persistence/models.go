package persistence

import "time"

// Conference is the stored scheduling unit.
type Conference struct {
	ID                  string
	Name                string
	WindowStart         time.Time
	WindowEnd           time.Time
	SlotDurationMinutes float64
	Rooms               []Room
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Room is a conference room. Position keeps the caller supplied ordering.
type Room struct {
	ID       string
	Name     string
	Capacity *int
	Position int
}

// Paper is a submission attached to a conference.
type Paper struct {
	ID               string
	ConferenceID     string
	Title            string
	Status           string
	MetadataComplete bool
	Position         int
}

// Schedule is the versioned container of a conference's allocation.
type Schedule struct {
	ID           string
	ConferenceID string
	Status       string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScheduleItem is one paper's placement within a schedule.
type ScheduleItem struct {
	ID         string
	ScheduleID string
	PaperID    string
	RoomID     *string
	SlotID     *string
	Start      *time.Time
	End        *time.Time
	Status     string
	Reason     *string
	Position   int
}

// Schedule statuses.
const (
	ScheduleStatusDraft     = "draft"
	ScheduleStatusSaved     = "saved"
	ScheduleStatusPublished = "published"
)

var scheduleStatusRank = map[string]int{
	ScheduleStatusDraft:     0,
	ScheduleStatusSaved:     1,
	ScheduleStatusPublished: 2,
}

// ScheduleStatusRank orders schedule statuses. A stored status only ever moves to a higher rank.
func ScheduleStatusRank(status string) (int, bool) {
	rank, ok := scheduleStatusRank[status]
	return rank, ok
}

// StatusesBelow lists, lowest first, the statuses a schedule may move from to reach status.
func StatusesBelow(status string) []string {
	rank, ok := scheduleStatusRank[status]
	if !ok {
		return nil
	}
	var out []string
	for _, candidate := range []string{ScheduleStatusDraft, ScheduleStatusSaved, ScheduleStatusPublished} {
		if scheduleStatusRank[candidate] < rank {
			out = append(out, candidate)
		}
	}
	return out
}

// DraftInput replaces the full item set of a conference's schedule.
type DraftInput struct {
	ConferenceID string
	// ScheduleID is used when the schedule does not exist yet.
	ScheduleID string
	Items      []ScheduleItem
	// ExpectedVersion, when set, must equal the stored version or ErrVersionConflict is returned.
	ExpectedVersion *int64
	Now             time.Time
}

// StatusInput moves a conference's schedule to a new status.
type StatusInput struct {
	ConferenceID string
	Status       string
	Now          time.Time
}
