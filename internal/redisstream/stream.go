// Package redisstream appends JSON events to Redis Streams.
package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Publisher appends entries to a single stream.
type Publisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMaxLen caps the stream length approximately. Zero keeps every entry.
func WithMaxLen(maxLen int64) Option {
	return func(p *Publisher) {
		p.maxLen = maxLen
	}
}

// WithClock overrides the clock used for the timestamp field.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher returns a Publisher writing to stream.
func NewPublisher(client redis.Cmdable, stream string, opts ...Option) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redisstream: client is required")
	}
	if stream == "" {
		return nil, errors.New("redisstream: stream name is required")
	}
	p := &Publisher{client: client, stream: stream, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stream returns the stream name.
func (p *Publisher) Stream() string {
	return p.stream
}

// PublishJSON appends data encoded as JSON under the "data" field together with a unix
// "timestamp" and any extra string fields. It returns the entry ID assigned by Redis.
func (p *Publisher) PublishJSON(ctx context.Context, data any, fields map[string]string) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("redisstream: encode: %w", err)
	}

	values := make(map[string]interface{}, len(fields)+2)
	for key, value := range fields {
		values[key] = value
	}
	values["data"] = string(encoded)
	values["timestamp"] = fmt.Sprintf("%d", p.now().Unix())

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("redisstream: xadd %s: %w", p.stream, err)
	}
	return id, nil
}

// Dial opens a client for addr and verifies it with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstream: ping %s: %w", addr, err)
	}
	return client, nil
}
