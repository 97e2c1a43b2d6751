// Package scheduler holds the allocation and edit validation rules for conference schedules.
// Everything in this package is deterministic and free of I/O.
package scheduler

import (
	"strings"
	"time"
)

// Window bounds the time span a conference can be scheduled in.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether both bounds are set and Start precedes End.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Contains reports whether [start, end] lies within the window.
func (w Window) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// Room is a schedulable space.
type Room struct {
	ID       string
	Name     string
	Capacity *int
}

// Key returns the identity used for conflict detection: the ID when present, otherwise the name.
func (r Room) Key() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Name)
}

// TimeSlot is a candidate placement produced during allocation. It is never stored on its own.
type TimeSlot struct {
	ID     string
	RoomID string
	Start  time.Time
	End    time.Time
}

// PaperStatus is the review outcome of a paper.
type PaperStatus string

const (
	PaperSubmitted PaperStatus = "submitted"
	PaperAccepted  PaperStatus = "accepted"
	PaperRejected  PaperStatus = "rejected"
	PaperWithdrawn PaperStatus = "withdrawn"
)

// Paper is a conference submission considered for scheduling.
type Paper struct {
	ID               string
	ConferenceID     string
	Title            string
	Status           PaperStatus
	MetadataComplete bool
}

// EntryStatus tells whether an entry holds a room and time.
type EntryStatus string

const (
	EntryScheduled   EntryStatus = "scheduled"
	EntryUnscheduled EntryStatus = "unscheduled"
)

// Entry is one paper's placement within a schedule. Unscheduled entries never carry
// a room, slot or time.
type Entry struct {
	ID         string
	ScheduleID string
	PaperID    string
	RoomID     string
	SlotID     string
	Start      time.Time
	End        time.Time
	Status     EntryStatus
	Reason     Reason
}

// Scheduled reports whether the entry holds a placement.
func (e Entry) Scheduled() bool {
	return e.Status == EntryScheduled
}

func unscheduledEntry(paperID string, reason Reason) Entry {
	return Entry{PaperID: paperID, Status: EntryUnscheduled, Reason: reason}
}
