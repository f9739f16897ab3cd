// Package timeline is the page-side feature API built on the bridge: it
// registers for playback position updates from the host and exposes the
// navigation commands a companion page needs.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/callback"
)

// Native functions and page slots known to the host.
const (
	FuncRegisterForTimelineUpdates = "registerForTimelineUpdates"
	FuncCloseWebViewport           = "closeWebViewport"
	FuncLoadMediaAssetURL          = "loadMediaAssetURL"

	UpdateSlot = "updateTimeline"
	ErrorSlot  = "onErrorCallingNativeFunction"
)

// Position is the payload the host sends to the timeline entry point.
type Position struct {
	ContentTime         float64 `json:"contentTime"`
	TimespeedMultiplier float64 `json:"timespeedMultiplier"`
}

// Alerter surfaces host faults to the user.
type Alerter interface {
	Alert(message string)
}

// AlerterFunc adapts a function to an Alerter.
type AlerterFunc func(message string)

func (f AlerterFunc) Alert(message string) { f(message) }

// Option configures a Page.
type Option func(*Page)

// WithAlerter replaces the default alerter, which logs at warn level.
func WithAlerter(a Alerter) Option {
	return func(p *Page) {
		p.alerter = a
	}
}

// WithMessageSink receives the result text of successful registrations.
func WithMessageSink(fn func(string)) Option {
	return func(p *Page) {
		p.message = fn
	}
}

// WithUpdateHandler is called for every position the host reports.
func WithUpdateHandler(fn func(Position)) Option {
	return func(p *Page) {
		p.onUpdate = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Page) {
		p.logger = l
	}
}

// Page holds the feature-level calls of a companion page.
type Page struct {
	caller   bridge.Caller
	alerter  Alerter
	message  func(string)
	onUpdate func(Position)
	logger   *slog.Logger

	mu      sync.RWMutex
	last    Position
	updates int
}

func NewPage(caller bridge.Caller, opts ...Option) *Page {
	p := &Page{caller: caller}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.alerter == nil {
		logger := p.logger
		p.alerter = AlerterFunc(func(message string) {
			logger.Warn("native call failed", "message", message)
		})
	}
	return p
}

// Install binds the timeline entry point and the default error continuation
// so the host can reach them by name.
func (p *Page) Install() {
	p.caller.Registry().Register(ErrorSlot, p.OnErrorCallingNativeFunction)
	p.caller.Registry().Register(UpdateSlot, func(payload string) {
		if err := p.UpdateTimeline(payload); err != nil {
			p.logger.Warn("bad timeline update", "error", err)
		}
	})
}

// UpdateTimeline is the entry point the host calls whenever playback advances.
func (p *Page) UpdateTimeline(payload string) error {
	var pos Position
	if err := json.Unmarshal([]byte(payload), &pos); err != nil {
		return fmt.Errorf("decode position: %w", err)
	}

	p.mu.Lock()
	p.last = pos
	p.updates++
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(pos)
	}
	return nil
}

// Position returns the last reported position and how many updates arrived.
func (p *Page) Position() (Position, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.updates
}

type registerConfig struct {
	period time.Duration
	adhoc  bool
	opts   []bridge.CallOption
}

// RegisterOption configures RegisterForTimelineUpdates.
type RegisterOption func(*registerConfig)

// WithPeriod asks for updates every period. Hosts that push updates on their
// own schedule do not need it; the mock host does.
func WithPeriod(period time.Duration, adhoc bool) RegisterOption {
	return func(c *registerConfig) {
		c.period = period
		c.adhoc = adhoc
	}
}

// WithCallOptions passes options through to the bridge call.
func WithCallOptions(opts ...bridge.CallOption) RegisterOption {
	return func(c *registerConfig) {
		c.opts = append(c.opts, opts...)
	}
}

// RegisterForTimelineUpdates asks the host to start calling the timeline
// entry point.
func (p *Page) RegisterForTimelineUpdates(ctx context.Context, opts ...RegisterOption) (*bridge.Call, error) {
	cfg := registerConfig{adhoc: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var args []any
	if cfg.period > 0 {
		args = []any{cfg.period.Milliseconds(), cfg.adhoc}
	}

	return p.caller.CallNativeFunction(ctx, FuncRegisterForTimelineUpdates, args,
		callback.Keyed("timeline.registered", p.onRegistered),
		p.errorCallback(),
		cfg.opts...)
}

// CloseWebViewAndShowExperienceView asks the host to close the web view.
func (p *Page) CloseWebViewAndShowExperienceView(ctx context.Context) (*bridge.Call, error) {
	return p.caller.CallNativeFunction(ctx, FuncCloseWebViewport, nil, callback.Callback{}, callback.Callback{})
}

// LoadHomePage asks the host to load the media asset's home page.
func (p *Page) LoadHomePage(ctx context.Context) (*bridge.Call, error) {
	return p.caller.CallNativeFunction(ctx, FuncLoadMediaAssetURL, nil, callback.Callback{}, callback.Callback{})
}

// OnErrorCallingNativeFunction is the default error continuation: it alerts
// the message carried by the host's reply.
func (p *Page) OnErrorCallingNativeFunction(reply string) {
	var r bridge.Reply
	if err := json.Unmarshal([]byte(reply), &r); err != nil || r.Message == "" {
		p.alerter.Alert(reply)
		return
	}
	p.alerter.Alert(r.Message)
}

func (p *Page) errorCallback() callback.Callback {
	return callback.Callback{Name: ErrorSlot, Fn: p.OnErrorCallingNativeFunction}
}

func (p *Page) onRegistered(reply string) {
	var r struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(reply), &r); err != nil {
		p.logger.Warn("bad registration reply", "error", err)
		return
	}
	if p.message != nil {
		p.message(r.Result)
	}
}
