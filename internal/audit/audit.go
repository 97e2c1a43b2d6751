// Package audit provides sinks for schedule audit events.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/redisstream"
)

// Record is the wire form of an audit event.
type Record struct {
	Type       string         `json:"type"`
	RelatedID  string         `json:"related_id"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewRecord converts an application event into its wire form.
func NewRecord(event application.AuditEvent) Record {
	return Record{
		Type:       string(event.Type),
		RelatedID:  event.RelatedID,
		Details:    event.Details,
		OccurredAt: event.OccurredAt.UTC(),
	}
}

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

// Record implements application.AuditSink.
func (s *LogSink) Record(ctx context.Context, event application.AuditEvent) error {
	attrs := []any{
		"audit_event", string(event.Type),
		"related_id", event.RelatedID,
		"occurred_at", event.OccurredAt,
	}
	if len(event.Details) > 0 {
		attrs = append(attrs, "details", event.Details)
	}
	s.logger.WarnContext(ctx, "audit event", attrs...)
	return nil
}

// StreamSink appends audit events to a Redis stream.
type StreamSink struct {
	publisher *redisstream.Publisher
}

// NewStreamSink returns a sink publishing through publisher.
func NewStreamSink(publisher *redisstream.Publisher) *StreamSink {
	return &StreamSink{publisher: publisher}
}

// Record implements application.AuditSink.
func (s *StreamSink) Record(ctx context.Context, event application.AuditEvent) error {
	_, err := s.publisher.PublishJSON(ctx, NewRecord(event), map[string]string{
		"type":       string(event.Type),
		"related_id": event.RelatedID,
	})
	return err
}

// Fanout delivers every event to all sinks and joins their errors.
type Fanout []application.AuditSink

// Record implements application.AuditSink.
func (f Fanout) Record(ctx context.Context, event application.AuditEvent) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
