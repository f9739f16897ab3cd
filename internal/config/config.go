// Package config provides navbridge configuration loaded from environment
// variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:Load"

// Host implementations selectable at startup.
const (
	HostMock = "mock"
	HostNATS = "nats"
)

// Config holds navbridge configuration. Every variable is read with the
// NAVBRIDGE_ prefix, e.g. NAVBRIDGE_HOST.
type Config struct {
	// Host selects the bridge implementation: mock or nats.
	Host string `envconfig:"HOST" default:"mock"`

	// NATS
	NATSURL        string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"navbridge"`
	SubjectPrefix  string `envconfig:"SUBJECT_PREFIX" default:"navbridge"`
	ConnectRetries uint64 `envconfig:"CONNECT_RETRIES" default:"5"`

	// Timeline
	TimelinePeriod time.Duration `envconfig:"TIMELINE_PERIOD" default:"1s"`
	TimelineAdhoc  bool          `envconfig:"TIMELINE_ADHOC" default:"true"`

	// CallTimeout bounds every native call; zero waits forever.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"0s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("NAVBRIDGE", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &c, nil
}

// Validate checks the values Load cannot check by type alone.
func (c *Config) Validate() error {
	switch c.Host {
	case HostMock, HostNATS:
	default:
		return fmt.Errorf("%s - NAVBRIDGE_HOST must be %q or %q, got %q", logPrefix, HostMock, HostNATS, c.Host)
	}
	if c.Host == HostNATS && c.NATSURL == "" {
		return fmt.Errorf("%s - NAVBRIDGE_NATS_URL is required for the nats host", logPrefix)
	}
	if c.SubjectPrefix == "" || strings.ContainsAny(c.SubjectPrefix, " \t") {
		return fmt.Errorf("%s - NAVBRIDGE_SUBJECT_PREFIX must be a non-empty subject", logPrefix)
	}
	if c.TimelinePeriod <= 0 {
		return fmt.Errorf("%s - NAVBRIDGE_TIMELINE_PERIOD must be positive", logPrefix)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("%s - NAVBRIDGE_CALL_TIMEOUT must not be negative", logPrefix)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s - NAVBRIDGE_LOG_FORMAT must be text or json, got %q", logPrefix, c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%s - unknown log level %q", logPrefix, name)
}

// NewLogger builds a text or JSON logger writing to w.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("%s - unknown log format %q", logPrefix, format)
}
