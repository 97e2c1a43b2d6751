package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/example/conference-scheduler/internal/application"
)

// Publisher is the subset of mqtt.Client the notifier uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// MQTTNotifier publishes notifications under Topic/<conference id>.
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	qos       byte
	timeout   time.Duration
}

// NewMQTTNotifier wraps an already connected publisher.
func NewMQTTNotifier(publisher Publisher, topic string, qos byte, timeout time.Duration) *MQTTNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTNotifier{publisher: publisher, topic: topic, qos: qos, timeout: timeout}
}

// DialMQTT connects to cfg.Broker and returns the client with a notifier bound to it.
func DialMQTT(cfg MQTTConfig) (mqtt.Client, *MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("notify: connect to MQTT broker: %w", token.Error())
	}
	return client, NewMQTTNotifier(client, cfg.Topic, cfg.QoS, cfg.Timeout), nil
}

// TriggerScheduleNotifications implements application.Notifier.
func (m *MQTTNotifier) TriggerScheduleNotifications(ctx context.Context, n application.ScheduleNotification) error {
	msg := NewMessage(n)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode mqtt payload: %w", err)
	}

	topic := m.topic + "/" + msg.ConferenceID
	token := m.publisher.Publish(topic, m.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return fmt.Errorf("notify: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", topic, err)
	}
	return nil
}
