package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/conference-scheduler/internal/scheduler"
)

// AuditEventType names a structured audit record.
type AuditEventType string

const (
	AuditScheduleSaveFailed         AuditEventType = "schedule_save_failed"
	AuditSchedulePublishFailed      AuditEventType = "schedule_publish_failed"
	AuditScheduleEditDenied         AuditEventType = "schedule_edit_denied"
	AuditScheduleConflict           AuditEventType = "schedule_conflict"
	AuditScheduleConcurrency        AuditEventType = "schedule_concurrency"
	AuditScheduleNotificationFailed AuditEventType = "schedule_notification_failed"
	AuditScheduleAccessDenied       AuditEventType = "schedule_access_denied"
)

// AuditEvent is one structured audit record.
type AuditEvent struct {
	Type       AuditEventType
	RelatedID  string
	Details    map[string]any
	OccurredAt time.Time
}

// AuditSink receives audit events. Its failures never affect the operation that emitted the event.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// ScheduleNotification announces a committed schedule change. Entry is set for entry edits
// and nil for status transitions.
type ScheduleNotification struct {
	Schedule Schedule
	Entry    *scheduler.Entry
}

// Notifier delivers schedule notifications. Delivery is best-effort and never retried here.
type Notifier interface {
	TriggerScheduleNotifications(ctx context.Context, notification ScheduleNotification) error
}

// Hooks are the post-commit side effects of schedule operations. Either field may be nil.
type Hooks struct {
	Audit    AuditSink
	Notifier Notifier
}

// audit records event, logging sink failures instead of returning them.
func (h Hooks) audit(ctx context.Context, logger *slog.Logger, event AuditEvent) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(context.WithoutCancel(ctx), event); err != nil {
		logger.WarnContext(ctx, "audit sink rejected event",
			"audit_event", string(event.Type),
			"related_id", event.RelatedID,
			"error", err,
		)
	}
}

// notify runs after a commit. A failed delivery is logged and audited; the committed state
// stays as it is.
func (h Hooks) notify(ctx context.Context, logger *slog.Logger, notification ScheduleNotification, at time.Time) {
	if h.Notifier == nil {
		return
	}
	err := h.Notifier.TriggerScheduleNotifications(context.WithoutCancel(ctx), notification)
	if err == nil {
		return
	}

	logger.WarnContext(ctx, "schedule notification failed",
		"schedule_id", notification.Schedule.ID,
		"error", err,
	)
	details := map[string]any{
		"conference_id": notification.Schedule.ConferenceID,
		"version":       notification.Schedule.Version,
		"error":         err.Error(),
	}
	if notification.Entry != nil {
		details["entry_id"] = notification.Entry.ID
	}
	h.audit(ctx, logger, AuditEvent{
		Type:       AuditScheduleNotificationFailed,
		RelatedID:  notification.Schedule.ID,
		Details:    details,
		OccurredAt: at,
	})
}
