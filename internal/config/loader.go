package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort          int
	StorageDriver     string
	SQLiteDSN         string
	PostgresDSN       string
	APITokenHash      string
	GenerationBudget  time.Duration
	PublishedCacheTTL time.Duration
	ShutdownTimeout   time.Duration

	RedisAddr     string
	RedisPassword string
	NotifyStream  string
	AuditStream   string
	WebhookURL    string
	MQTTBroker    string
	MQTTTopic     string
	MQTTClientID  string

	LogLevel  slog.Level
	TraceFile string
}

var defaults = map[string]any{
	"http_port":           "8080",
	"storage_driver":      DriverSQLite,
	"sqlite_dsn":          "file:scheduler.db",
	"generation_budget":   "5s",
	"published_cache_ttl": "30s",
	"shutdown_timeout":    "10s",
	"notify_stream":       "scheduler:notifications",
	"audit_stream":        "scheduler:audit",
	"mqtt_topic":          "scheduler/schedules",
	"mqtt_client_id":      "conference-scheduler",
	"log_level":           "info",
}

// NewViper returns a viper instance reading SCHEDULER_* environment variables with defaults
// applied. When SCHEDULER_CONFIG_FILE names a file, its values sit between defaults and
// environment variables.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("SCHEDULER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルを読み込めません: %s: %w", file, err)
		}
	}
	return v, nil
}

// Load parses configuration values from the current process environment and optional file.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	v, err := NewViper()
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// FromViper validates the values held by v.
func FromViper(v *viper.Viper) (Config, error) {
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	get := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}
	envName := func(key string) string {
		return "SCHEDULER_" + strings.ToUpper(key)
	}
	duration := func(key string, allowZero bool) time.Duration {
		d, err := time.ParseDuration(get(key))
		if err != nil || d < 0 || (d == 0 && !allowZero) {
			invalid = append(invalid, envName(key))
			return 0
		}
		return d
	}

	cfg := Config{
		StorageDriver: strings.ToLower(get("storage_driver")),
		SQLiteDSN:     get("sqlite_dsn"),
		PostgresDSN:   get("postgres_dsn"),
		APITokenHash:  get("api_token_hash"),
		RedisAddr:     get("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		NotifyStream:  get("notify_stream"),
		AuditStream:   get("audit_stream"),
		WebhookURL:    get("webhook_url"),
		MQTTBroker:    get("mqtt_broker"),
		MQTTTopic:     get("mqtt_topic"),
		MQTTClientID:  get("mqtt_client_id"),
		TraceFile:     get("trace_file"),
	}

	port, err := strconv.Atoi(get("http_port"))
	if err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, envName("http_port"))
	} else {
		cfg.HTTPPort = port
	}

	switch cfg.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.SQLiteDSN == "" {
			missing = append(missing, envName("sqlite_dsn"))
		}
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			missing = append(missing, envName("postgres_dsn"))
		}
	default:
		invalid = append(invalid, envName("storage_driver"))
	}

	if cfg.APITokenHash != "" && !strings.HasPrefix(cfg.APITokenHash, "$argon2id$") {
		invalid = append(invalid, envName("api_token_hash"))
	}

	cfg.GenerationBudget = duration("generation_budget", true)
	cfg.PublishedCacheTTL = duration("published_cache_ttl", true)
	cfg.ShutdownTimeout = duration("shutdown_timeout", false)

	if err := cfg.LogLevel.UnmarshalText([]byte(get("log_level"))); err != nil {
		invalid = append(invalid, envName("log_level"))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
