package notify

import (
	"context"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/redisstream"
)

// StreamNotifier appends notifications to a Redis stream.
type StreamNotifier struct {
	publisher *redisstream.Publisher
}

// NewStreamNotifier returns a notifier publishing through publisher.
func NewStreamNotifier(publisher *redisstream.Publisher) *StreamNotifier {
	return &StreamNotifier{publisher: publisher}
}

// TriggerScheduleNotifications implements application.Notifier.
func (s *StreamNotifier) TriggerScheduleNotifications(ctx context.Context, n application.ScheduleNotification) error {
	msg := NewMessage(n)
	_, err := s.publisher.PublishJSON(ctx, msg, map[string]string{
		"kind":          msg.Kind,
		"conference_id": msg.ConferenceID,
	})
	return err
}
