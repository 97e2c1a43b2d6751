// Package notify delivers schedule change notifications over Redis Streams, webhooks and MQTT.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// Kinds of notification messages.
const (
	KindEntryUpdated  = "schedule.entry_updated"
	KindStatusChanged = "schedule.status_changed"
)

// Message is the JSON payload sent to every channel.
type Message struct {
	Kind         string        `json:"kind"`
	ConferenceID string        `json:"conference_id"`
	ScheduleID   string        `json:"schedule_id"`
	Status       string        `json:"status"`
	Version      int64         `json:"version"`
	Entry        *EntryPayload `json:"entry,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// EntryPayload describes the edited entry.
type EntryPayload struct {
	ID      string     `json:"id"`
	PaperID string     `json:"paper_id"`
	RoomID  string     `json:"room_id,omitempty"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Status  string     `json:"status"`
}

// NewMessage builds the payload for a notification.
func NewMessage(n application.ScheduleNotification) Message {
	msg := Message{
		Kind:         KindStatusChanged,
		ConferenceID: n.Schedule.ConferenceID,
		ScheduleID:   n.Schedule.ID,
		Status:       string(n.Schedule.Status),
		Version:      n.Schedule.Version,
		UpdatedAt:    n.Schedule.UpdatedAt.UTC(),
	}
	if n.Entry != nil {
		msg.Kind = KindEntryUpdated
		msg.Entry = newEntryPayload(*n.Entry)
	}
	return msg
}

func newEntryPayload(entry scheduler.Entry) *EntryPayload {
	payload := &EntryPayload{
		ID:      entry.ID,
		PaperID: entry.PaperID,
		Status:  string(entry.Status),
	}
	if entry.Scheduled() {
		start, end := entry.Start.UTC(), entry.End.UTC()
		payload.RoomID = entry.RoomID
		payload.Start = &start
		payload.End = &end
	}
	return payload
}

// Fanout delivers a notification to every notifier and joins their errors.
type Fanout []application.Notifier

// TriggerScheduleNotifications implements application.Notifier.
func (f Fanout) TriggerScheduleNotifications(ctx context.Context, n application.ScheduleNotification) error {
	var errs []error
	for _, notifier := range f {
		if notifier == nil {
			continue
		}
		if err := notifier.TriggerScheduleNotifications(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
