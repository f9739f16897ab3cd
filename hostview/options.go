package hostview

import (
	"log/slog"
	"time"
)

// Option configures a Run call.
type Option func(*runConfig)

type runConfig struct {
	timeout time.Duration
	args    []string
	env     map[string]string
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 30 * time.Second,
		args:    []string{"page"},
		env:     make(map[string]string),
	}
}

// WithTimeout sets the maximum time the page may run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithArgs sets the page's command-line arguments, program name first.
func WithArgs(args ...string) Option {
	return func(c *runConfig) {
		c.args = args
	}
}

// WithEnv sets an environment variable visible to the page.
func WithEnv(key, value string) Option {
	return func(c *runConfig) {
		c.env[key] = value
	}
}

// RunnerOption configures the Runner at creation time.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32
	logger           *slog.Logger
}

func defaultRunnerConfig() runnerConfig {
	return runnerConfig{}
}

// WithDiskCache enables a persistent compilation cache. Optionally provide a
// directory; otherwise ~/.cache/navbridge or XDG_CACHE_HOME/navbridge is used.
func WithDiskCache(dir ...string) RunnerOption {
	return func(c *runnerConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps page memory in 64KB pages. Zero keeps the wazero default.
func WithMemoryLimit(pages uint32) RunnerOption {
	return func(c *runnerConfig) {
		c.memoryLimitPages = pages
	}
}

func WithLogger(l *slog.Logger) RunnerOption {
	return func(c *runnerConfig) {
		c.logger = l
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
)
