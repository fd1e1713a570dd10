package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
	// Embedded zone database so the default timezone resolves on minimal images.
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	repo "github.com/oshokin/cry-relay/internal/repository/episode"
)

// Config holds every setting of the relay process.
type Config struct {
	// ListenAddress is the HTTP listen address.
	ListenAddress string `yaml:"listen_addr" env:"CRY_RELAY_LISTEN_ADDR"`
	// Timezone is the IANA zone used to stamp episode records.
	Timezone string `yaml:"timezone" env:"CRY_RELAY_TIMEZONE"`
	// LogLevel is the minimum level of log lines.
	LogLevel string `yaml:"log_level" env:"CRY_RELAY_LOG_LEVEL"`
	// Timings are the episode detection and throttling windows.
	Timings Timings `yaml:"timings"`
	// Notifier configures the Telegram sender.
	Notifier Notifier `yaml:"notifier"`
	// Store configures the episode store.
	Store Store `yaml:"store"`
	// Executor configures the intent queue.
	Executor Executor `yaml:"executor"`
	// Telemetry configures metric export.
	Telemetry Telemetry `yaml:"telemetry"`

	// location is the parsed Timezone, set by Validate.
	location *time.Location
}

// Timings holds the detector windows.
type Timings struct {
	// MinAlertGap rejects triggers arriving sooner than this after the last accepted one.
	MinAlertGap time.Duration `yaml:"min_alert_gap" env:"CRY_RELAY_MIN_ALERT_GAP"`
	// QuietReset is the silence that ends an episode.
	QuietReset time.Duration `yaml:"quiet_reset" env:"CRY_RELAY_QUIET_RESET"`
	// BurstWindow is how long after an episode start reminders are sent.
	BurstWindow time.Duration `yaml:"burst_window" env:"CRY_RELAY_BURST_WINDOW"`
	// BurstNotifyInterval is the minimum spacing between reminders.
	BurstNotifyInterval time.Duration `yaml:"burst_notify_interval" env:"CRY_RELAY_BURST_NOTIFY_INTERVAL"`
}

// Notifier holds the Telegram credentials.
type Notifier struct {
	// Token is the bot token.
	Token string `yaml:"token" env:"TELEGRAM_TOKEN"`
	// ChatID is the operator chat.
	ChatID string `yaml:"chat_id" env:"CHAT_ID"`
	// WebhookSecret is compared with the X-Telegram-Bot-Api-Secret-Token header when set.
	WebhookSecret string `yaml:"webhook_secret" env:"TELEGRAM_WEBHOOK_SECRET"`
	// APIURL is the Bot API base URL.
	APIURL string `yaml:"api_url" env:"TELEGRAM_API_URL"`
	// Timeout bounds a single send.
	Timeout time.Duration `yaml:"timeout" env:"CRY_RELAY_NOTIFY_TIMEOUT"`
}

// Store holds the episode store connection settings.
type Store struct {
	// Driver is either "sqlite" or "mysql".
	Driver string `yaml:"driver" env:"STORE_DRIVER"`
	// DSN is the data source name. Empty disables the store.
	DSN string `yaml:"dsn" env:"STORE_DSN"`
	// Table is the fixed table holding episode records.
	Table string `yaml:"table" env:"STORE_TABLE"`
	// Timeout bounds a single store operation.
	Timeout time.Duration `yaml:"timeout" env:"CRY_RELAY_STORE_TIMEOUT"`
}

// Executor holds the intent queue settings.
type Executor struct {
	// QueueSize is the number of intents buffered before new ones are dropped.
	QueueSize int `yaml:"queue_size" env:"CRY_RELAY_QUEUE_SIZE"`
	// DrainTimeout bounds how long queued intents keep running after shutdown starts.
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"CRY_RELAY_DRAIN_TIMEOUT"`
}

// Telemetry holds metric export settings.
type Telemetry struct {
	// OTLPEndpoint is an OTLP/HTTP metrics URL. Empty keeps metrics in-process only.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "cry-relay.yaml"
	// DefaultListenAddress is the default HTTP listen address.
	DefaultListenAddress = ":8000"
	// DefaultTimezone is the zone the original deployment runs in.
	DefaultTimezone = "Asia/Ho_Chi_Minh"
	// DefaultTelegramAPIURL is the public Bot API endpoint.
	DefaultTelegramAPIURL = "https://api.telegram.org"
	// DefaultTimeout bounds adapter I/O.
	DefaultTimeout = 5 * time.Second
	// DefaultStoreDriver is the embedded SQLite driver.
	DefaultStoreDriver = repo.DriverSQLite
	// DefaultStoreTable is the table holding episode records.
	DefaultStoreTable = "episodes"
	// DefaultQueueSize is the intent queue capacity.
	DefaultQueueSize = 64
	// DefaultDrainTimeout is the shutdown grace period of the intent queue.
	DefaultDrainTimeout = 5 * time.Second

	// DefaultMinAlertGap absorbs sensor bounce.
	DefaultMinAlertGap = time.Second
	// DefaultQuietReset ends an episode after this much silence.
	DefaultQuietReset = 25 * time.Second
	// DefaultBurstWindow is the reminder window after an episode start.
	DefaultBurstWindow = 30 * time.Second
	// DefaultBurstNotifyInterval spaces reminders inside the burst window.
	DefaultBurstNotifyInterval = 5 * time.Second

	// DefaultFilePermissions is the permission used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	// ErrConfigIsNotSet is returned when a nil configuration is provided.
	ErrConfigIsNotSet = errors.New("configuration is not set")
	// ErrNonPositiveTiming is returned when a detector window is zero or negative.
	ErrNonPositiveTiming = errors.New("timings must be positive")
	// ErrInvalidQueueSize is returned for a negative queue size.
	ErrInvalidQueueSize = errors.New("executor queue size must not be negative")
)

// Load reads the settings file at path, applies environment overrides and validates the result.
// An empty path means the default file, which may be absent.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultConfigFilename
	}

	cfg := new(Config)

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
		// Defaults plus environment.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	cfg.location = location

	if err = validateTimings(&cfg.Timings); err != nil {
		return err
	}

	if err = validateNotifier(&cfg.Notifier); err != nil {
		return err
	}

	if err = validateStore(&cfg.Store); err != nil {
		return err
	}

	switch {
	case cfg.Executor.QueueSize < 0:
		return ErrInvalidQueueSize
	case cfg.Executor.QueueSize == 0:
		cfg.Executor.QueueSize = DefaultQueueSize
	}

	if cfg.Executor.DrainTimeout <= 0 {
		cfg.Executor.DrainTimeout = DefaultDrainTimeout
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		if _, err = url.ParseRequestURI(cfg.Telemetry.OTLPEndpoint); err != nil {
			return fmt.Errorf("invalid otlp endpoint: %w", err)
		}
	}

	return nil
}

// Location returns the zone records are stamped in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}

	return c.location
}

// validateTimings defaults unset windows and rejects negative ones.
func validateTimings(t *Timings) error {
	defaults := []struct {
		value    *time.Duration
		fallback time.Duration
	}{
		{&t.MinAlertGap, DefaultMinAlertGap},
		{&t.QuietReset, DefaultQuietReset},
		{&t.BurstWindow, DefaultBurstWindow},
		{&t.BurstNotifyInterval, DefaultBurstNotifyInterval},
	}

	for _, d := range defaults {
		if *d.value < 0 {
			return ErrNonPositiveTiming
		}

		if *d.value == 0 {
			*d.value = d.fallback
		}
	}

	return nil
}

// validateNotifier defaults the API URL and timeout.
func validateNotifier(n *Notifier) error {
	if n.APIURL == "" {
		n.APIURL = DefaultTelegramAPIURL
	}

	if _, err := url.ParseRequestURI(n.APIURL); err != nil {
		return fmt.Errorf("invalid telegram api url: %w", err)
	}

	if n.Timeout <= 0 {
		n.Timeout = DefaultTimeout
	}

	return nil
}

// validateStore defaults the driver, table and timeout.
func validateStore(s *Store) error {
	if s.Driver == "" {
		s.Driver = DefaultStoreDriver
	}

	if err := repo.ValidateDriver(s.Driver); err != nil {
		return err
	}

	if s.Table == "" {
		s.Table = DefaultStoreTable
	}

	if err := repo.ValidateTable(s.Table); err != nil {
		return err
	}

	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}

	return nil
}

// Configured reports whether both the bot token and chat id are present.
func (n *Notifier) Configured() bool {
	return n.Token != "" && n.ChatID != ""
}

// Configured reports whether a data source is present.
func (s *Store) Configured() bool {
	return s.DSN != ""
}
