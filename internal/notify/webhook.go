package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/example/conference-scheduler/internal/application"
)

// WebhookConfig configures a WebhookNotifier.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
	Headers    map[string]string
}

// WebhookNotifier posts notifications as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier builds a resty client for cfg.
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("notify: webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for key, value := range cfg.Headers {
		client.SetHeader(key, value)
	}

	return &WebhookNotifier{client: client, url: cfg.URL}, nil
}

// TriggerScheduleNotifications implements application.Notifier.
func (w *WebhookNotifier) TriggerScheduleNotifications(ctx context.Context, n application.ScheduleNotification) error {
	msg := NewMessage(n)
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Scheduler-Event", msg.Kind).
		SetBody(msg).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("notify: webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: webhook returned %s", resp.Status())
	}
	return nil
}
