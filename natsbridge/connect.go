// Package natsbridge carries the bridge over NATS so a page and its native
// host can live in different processes. The page publishes each navigation on
// <prefix>.navigate; the host answers with invocations on <prefix>.invoke,
// which the page acknowledges.
package natsbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	retry "github.com/sethvargo/go-retry"
)

const logPrefix = "natsbridge:connect"

const (
	navigateToken = "navigate"
	invokeToken   = "invoke"
)

// NavigateSubject is where pages under prefix publish navigations.
func NavigateSubject(prefix string) string {
	return prefix + "." + navigateToken
}

// InvokeSubject is where the host answers pages under prefix.
func InvokeSubject(prefix string) string {
	return prefix + "." + invokeToken
}

// SessionPrefix returns a prefix unique to one page, below base. A host
// serving base+".*" answers every such page on its own subject.
func SessionPrefix(base string) string {
	return base + "." + uuid.NewString()
}

// ConnectOption configures Connect.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
}

// WithRetries retries the initial connection n times with Fibonacci backoff
// starting at base.
func WithRetries(n uint64, base time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.retries = n
		c.backoff = base
	}
}

func WithLogger(l *slog.Logger) ConnectOption {
	return func(c *connectConfig) {
		c.logger = l
	}
}

// Connect creates a NATS connection to url. Once connected the client
// reconnects on its own; WithRetries covers a server that is not up yet.
func Connect(ctx context.Context, url, name string, opts ...ConnectOption) (*nats.Conn, error) {
	cfg := connectConfig{backoff: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info(fmt.Sprintf("%s - connecting to %s as %s", logPrefix, url, name))

	var nc *nats.Conn
	b := retry.WithMaxRetries(cfg.retries, retry.NewFibonacci(cfg.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name(name),
			nats.Timeout(10*time.Second),
			nats.ReconnectWait(2*time.Second),
			nats.MaxReconnects(60),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err == nil {
					logger.Info(fmt.Sprintf("%s - disconnected", logPrefix))
					return
				}
				logger.Warn(fmt.Sprintf("%s - disconnected: %v", logPrefix, err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info(fmt.Sprintf("%s - reconnected to %s", logPrefix, nc.ConnectedUrl()))
			}),
			nats.ClosedHandler(func(*nats.Conn) {
				logger.Info(fmt.Sprintf("%s - connection closed", logPrefix))
			}),
		)
		if err != nil {
			logger.Warn(fmt.Sprintf("%s - %v, will retry", logPrefix, err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect: %w", logPrefix, err)
	}

	logger.Info(fmt.Sprintf("%s - connected to %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
