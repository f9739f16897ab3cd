// Package mockhost answers bridge calls in-process so pages can run without a
// native host.
//
// The mock speaks the same wire contract as a real host: it resolves the
// envelope exactly as the navigation transport does, checks that it encodes,
// and answers through the named slots. When registerForTimelineUpdates carries
// arguments, the first one is taken as a timeline period in milliseconds and a
// feed starts invoking the page's timeline entry point with a simulated
// position.
package mockhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
)

// DefaultReply is the canned answer for every call without a scripted reply.
const DefaultReply = `{"result":"registered for timeline updates."}`

// TimelineFunction is the only call that starts a feed.
const TimelineFunction = "registerForTimelineUpdates"

// DefaultUpdateSlot is the page-level timeline entry point the feed invokes.
const DefaultUpdateSlot = "updateTimeline"

var ErrInvalidPeriod = errors.New("invalid timeline period")

// Option configures a Host.
type Option func(*config)

type config struct {
	replies    map[string]string
	faults     map[string]string
	updateSlot string
	jitter     func() float64
	logger     *slog.Logger
}

func defaultConfig() config {
	return config{
		replies:    make(map[string]string),
		faults:     make(map[string]string),
		updateSlot: DefaultUpdateSlot,
		jitter:     func() float64 { return rand.Float64() * 0.01 },
	}
}

// WithReply scripts the success reply for functionName.
func WithReply(functionName, reply string) Option {
	return func(c *config) {
		c.replies[functionName] = reply
	}
}

// WithFault makes calls to functionName fail with message through the error slot.
func WithFault(functionName, message string) Option {
	return func(c *config) {
		c.faults[functionName] = message
	}
}

// WithUpdateSlot changes the slot the timeline feed invokes.
func WithUpdateSlot(name string) Option {
	return func(c *config) {
		c.updateSlot = name
	}
}

// WithJitter replaces the random offset added to each simulated position.
func WithJitter(fn func() float64) Option {
	return func(c *config) {
		c.jitter = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Host is a bridge.Transport that never leaves the process.
type Host struct {
	cfg config

	mu     sync.Mutex
	feeds  []*Feed
	closed bool
}

func New(opts ...Option) *Host {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Host{cfg: cfg}
}

// Send answers env synchronously through inv, bypassing any navigation.
func (h *Host) Send(ctx context.Context, env bridge.Envelope, inv bridge.Invoker) error {
	if _, err := bridge.Encode(env); err != nil {
		return err
	}

	if msg, ok := h.cfg.faults[env.FunctionName]; ok {
		return h.fault(env, inv, msg)
	}

	if env.FunctionName == TimelineFunction && len(env.Args) > 0 {
		period, err := periodOf(env.Args[0])
		if err != nil {
			return h.fault(env, inv, err.Error())
		}
		if _, err := h.startFeed(period, inv); err != nil {
			return h.fault(env, inv, err.Error())
		}
	}

	if env.Success == "" {
		return nil
	}
	reply, ok := h.cfg.replies[env.FunctionName]
	if !ok {
		reply = DefaultReply
	}
	if err := inv.Invoke(env.Success, reply); err != nil {
		h.cfg.logger.Warn("mock reply not delivered", "function", env.FunctionName, "error", err)
	}
	return nil
}

func (h *Host) fault(env bridge.Envelope, inv bridge.Invoker, message string) error {
	if env.Error == "" {
		return nil
	}
	data, _ := json.Marshal(bridge.Reply{Message: message})
	if err := inv.Invoke(env.Error, string(data)); err != nil {
		h.cfg.logger.Warn("mock fault not delivered", "function", env.FunctionName, "error", err)
	}
	return nil
}

// Feeds returns the timeline feeds started so far.
func (h *Host) Feeds() []*Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Feed(nil), h.feeds...)
}

// Close stops every feed without waiting for their goroutines, so it may be
// called from an update handler. Calls made afterwards still get replies but
// start no feeds.
func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	feeds := h.feeds
	h.mu.Unlock()

	for _, f := range feeds {
		f.Stop()
	}
	return nil
}

func (h *Host) startFeed(period time.Duration, inv bridge.Invoker) (*Feed, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("mock host closed")
	}
	f := newFeed(period, h.cfg.updateSlot, h.cfg.jitter, inv, h.cfg.logger)
	h.feeds = append(h.feeds, f)
	go f.run()
	return f, nil
}

func periodOf(arg any) (time.Duration, error) {
	var ms float64
	switch v := arg.(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float64:
		ms = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, arg)
		}
		ms = f
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, arg)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPeriod, arg)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
