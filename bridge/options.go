package bridge

import (
	"log/slog"
	"time"

	"github.com/caffeineduck/navbridge/callback"
)

// Option configures a Bridge.
type Option func(*config)

type config struct {
	registry *callback.Registry
	logger   *slog.Logger
	timeout  time.Duration
}

func defaultConfig() config {
	return config{}
}

// WithRegistry shares a callback registry with the bridge. By default each
// bridge owns a fresh one.
func WithRegistry(r *callback.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithDefaultTimeout applies a timeout to every call that does not set its own.
// Zero disables it.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// CallOption configures a single CallNativeFunction call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithTimeout moves the call to StateTimedOut when no reply arrives within d.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.timeout = d
	}
}
