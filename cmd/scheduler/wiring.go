package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/audit"
	"github.com/example/conference-scheduler/internal/config"
	"github.com/example/conference-scheduler/internal/notify"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/persistence/postgres"
	"github.com/example/conference-scheduler/internal/persistence/sqlite"
	"github.com/example/conference-scheduler/internal/persistence/sqlstore"
	"github.com/example/conference-scheduler/internal/redisstream"
	"github.com/example/conference-scheduler/internal/repository"
)

const mqttDisconnectQuiesce = 250 // milliseconds

// openSQLStore opens the SQL backend named by cfg. Both backends migrate on open.
func openSQLStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		sqliteCfg := sqlite.DefaultConfig(cfg.SQLiteDSN)
		if cfg.SQLiteDSN == ":memory:" {
			sqliteCfg = sqlite.InMemoryConfig()
		}
		return sqlite.Open(ctx, sqliteCfg, logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresDSN), logger)
	default:
		return nil, fmt.Errorf("storage driver %q has no SQL schema", cfg.StorageDriver)
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	if cfg.StorageDriver == config.DriverMemory {
		return memory.New(), nil
	}
	store, err := openSQLStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// hookSet holds the post-commit collaborators and the connections backing them.
type hookSet struct {
	hooks   application.Hooks
	closers []func() error
}

func (h *hookSet) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// abandon closes a partially built hook set, logging rather than returning the close error.
func (h *hookSet) abandon(logger *slog.Logger) {
	if cerr := h.Close(); cerr != nil {
		logger.Error("failed to close hook connections", "error", cerr)
	}
}

// buildHooks always audits to the logger; Redis, webhook and MQTT channels join when configured.
func buildHooks(ctx context.Context, cfg config.Config, logger *slog.Logger) (*hookSet, error) {
	set := &hookSet{}
	sinks := audit.Fanout{audit.NewLogSink(logger)}
	var notifiers notify.Fanout

	if cfg.RedisAddr != "" {
		client, err := redisstream.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			return nil, err
		}
		set.closers = append(set.closers, client.Close)
		sink, notifier, err := streamHooks(client, cfg)
		if err != nil {
			set.abandon(logger)
			return nil, err
		}
		sinks = append(sinks, sink)
		notifiers = append(notifiers, notifier)
	}

	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:        cfg.WebhookURL,
			Timeout:    5 * time.Second,
			RetryCount: 2,
		})
		if err != nil {
			set.abandon(logger)
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}

	if cfg.MQTTBroker != "" {
		client, notifier, err := notify.DialMQTT(notify.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			QoS:      1,
		})
		if err != nil {
			set.abandon(logger)
			return nil, err
		}
		set.closers = append(set.closers, disconnectMQTT(client))
		notifiers = append(notifiers, notifier)
	}

	set.hooks.Audit = sinks
	if len(notifiers) > 0 {
		set.hooks.Notifier = notifiers
	}
	logger.Debug("hooks configured", "audit_sinks", len(sinks), "notifiers", len(notifiers))
	return set, nil
}

func streamHooks(client redis.Cmdable, cfg config.Config) (*audit.StreamSink, *notify.StreamNotifier, error) {
	auditStream, err := redisstream.NewPublisher(client, cfg.AuditStream)
	if err != nil {
		return nil, nil, err
	}
	notifyStream, err := redisstream.NewPublisher(client, cfg.NotifyStream)
	if err != nil {
		return nil, nil, err
	}
	return audit.NewStreamSink(auditStream), notify.NewStreamNotifier(notifyStream), nil
}

func disconnectMQTT(client mqtt.Client) func() error {
	return func() error {
		client.Disconnect(mqttDisconnectQuiesce)
		return nil
	}
}

// services bundles the application layer over one store.
type services struct {
	hooks       application.Hooks
	repo        *repository.Repository
	conferences *application.ConferenceService
	schedules   *application.ScheduleService
}

func newServices(store persistence.Store, hooks application.Hooks, cfg config.Config, logger *slog.Logger) services {
	repo := repository.New(store)
	idGenerator := func() string { return uuid.NewString() }
	now := func() time.Time { return time.Now().UTC() }

	return services{
		hooks:       hooks,
		repo:        repo,
		conferences: application.NewConferenceServiceWithLogger(repo, idGenerator, now, logger),
		schedules: application.NewScheduleServiceWithOptions(repo, hooks, idGenerator, now, application.ScheduleServiceOptions{
			Logger:            logger,
			GenerationBudget:  cfg.GenerationBudget,
			PublishedCacheTTL: cfg.PublishedCacheTTL,
		}),
	}
}

// withServices opens storage and hooks, runs fn and releases everything afterwards.
func (a *app) withServices(ctx context.Context, fn func(services) error) (err error) {
	store, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.logger.Error("failed to close storage", "error", cerr)
		}
	}()

	hooks, err := buildHooks(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := hooks.Close(); cerr != nil {
			a.logger.Error("failed to close hook connections", "error", cerr)
		}
	}()

	return fn(newServices(store, hooks.hooks, a.cfg, a.logger))
}
