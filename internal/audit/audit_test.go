package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/redisstream"
)

var occurred = time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

func publishFailed() application.AuditEvent {
	return application.AuditEvent{
		Type:       application.AuditSchedulePublishFailed,
		RelatedID:  "sched-1",
		Details:    map[string]any{"conference_id": "conf-1"},
		OccurredAt: occurred,
	}
}

func TestLogSink_Record(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, sink.Record(context.Background(), publishFailed()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "schedule_publish_failed", line["audit_event"])
	assert.Equal(t, "sched-1", line["related_id"])
	assert.Equal(t, "audit", line["component"])
	assert.Equal(t, "WARN", line["level"])
}

func TestStreamSink_Record(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher, err := redisstream.NewPublisher(client, "scheduler:audit")
	require.NoError(t, err)
	sink := NewStreamSink(publisher)

	require.NoError(t, sink.Record(context.Background(), publishFailed()))

	messages, err := client.XRange(context.Background(), "scheduler:audit", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "schedule_publish_failed", messages[0].Values["type"])

	var record Record
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["data"].(string)), &record))
	assert.Equal(t, "sched-1", record.RelatedID)
	assert.Equal(t, "conf-1", record.Details["conference_id"])
	assert.True(t, record.OccurredAt.Equal(occurred))
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, application.AuditEvent) error { return f.err }

type countingSink struct{ n int }

func (c *countingSink) Record(context.Context, application.AuditEvent) error {
	c.n++
	return nil
}

func TestFanout_Record(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	counter := &countingSink{}
	sink := Fanout{failingSink{err: boom}, nil, counter}

	err := sink.Record(context.Background(), publishFailed())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counter.n, "a failing sink must not stop delivery to the others")

	assert.NoError(t, Fanout{counter}.Record(context.Background(), publishFailed()))
}
