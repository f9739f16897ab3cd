package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/caffeineduck/navbridge/callback"
)

// Invoker runs a callback slot by name. Hosts answer calls through it.
type Invoker interface {
	Invoke(slot, reply string) error
}

// Transport delivers prepared envelopes to a host. The host answers later,
// out of band, through inv.
type Transport interface {
	Send(ctx context.Context, env Envelope, inv Invoker) error
}

// Caller is what feature code depends on. *Bridge implements it whatever the
// transport behind it.
type Caller interface {
	CallNativeFunction(ctx context.Context, functionName string, args []any, onSuccess, onError callback.Callback, opts ...CallOption) (*Call, error)
	Registry() *callback.Registry
}

// Bridge composes the callback registry and a transport into the native call
// facade.
type Bridge struct {
	transport Transport
	registry  *callback.Registry
	logger    *slog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string][]*Call
}

func New(transport Transport, opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = callback.NewRegistry()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Bridge{
		transport: transport,
		registry:  cfg.registry,
		logger:    cfg.logger,
		timeout:   cfg.timeout,
		pending:   make(map[string][]*Call),
	}
}

// NewNavigation returns a Bridge that reaches the host by navigating to
// js2ios:// URLs on surface.
func NewNavigation(surface Surface, opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(NewNavigationTransport(surface, cfg.logger), opts...)
}

func (b *Bridge) Registry() *callback.Registry {
	return b.registry
}

// CallNativeFunction asks the host to run functionName. onSuccess and onError
// may be zero. The returned Call completes when the host invokes one of the
// resolved slots; the reply itself is delivered to the continuation. Encoding
// faults are returned synchronously and nothing is sent.
func (b *Bridge) CallNativeFunction(ctx context.Context, functionName string, args []any, onSuccess, onError callback.Callback, opts ...CallOption) (*Call, error) {
	cfg := callConfig{timeout: b.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	env, err := NewEnvelope(b.registry, functionName, args, onSuccess, onError)
	if err != nil {
		return nil, err
	}

	call := newCall(b, env)
	b.track(call)
	b.arm(ctx, call, cfg.timeout)

	if err := b.transport.Send(ctx, env, b); err != nil {
		b.forget(call)
		call.finish(StateCanceled, "", err)
		return nil, err
	}

	b.logger.Debug("native call sent", "function", functionName, "success", env.Success, "error", env.Error)
	return call, nil
}

// Invoke runs slot with reply and completes the oldest pending call waiting
// on it. It is the entry point for hosts.
func (b *Bridge) Invoke(slot, reply string) error {
	call := b.claim(slot)

	if err := b.registry.Invoke(slot, reply); err != nil {
		b.logger.Warn("host invoked unknown slot", "slot", slot)
		if call != nil {
			call.finish(StateFaulted, reply, err)
		}
		return err
	}

	if call == nil {
		b.logger.Debug("reply without pending call", "slot", slot)
		return nil
	}
	if slot == call.Success {
		call.finish(StateResolved, reply, nil)
	} else {
		call.finish(StateFaulted, reply, newFaultError(call.FunctionName, reply))
	}
	return nil
}

// Pending returns the number of calls waiting for the host.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[*Call]struct{})
	for _, calls := range b.pending {
		for _, c := range calls {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

func (b *Bridge) arm(ctx context.Context, call *Call, timeout time.Duration) {
	if timeout <= 0 && ctx.Done() == nil {
		return
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	stop := context.AfterFunc(ctx, func() {
		call.expire(context.Cause(ctx))
	})
	call.arm(func() {
		stop()
		cancel()
	})
}

func (b *Bridge) track(call *Call) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, slot := range call.slots() {
		b.pending[slot] = append(b.pending[slot], call)
	}
}

func (b *Bridge) claim(slot string) *Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := b.pending[slot]
	if len(calls) == 0 {
		return nil
	}
	call := calls[0]
	b.removeLocked(call)
	return call
}

func (b *Bridge) forget(call *Call) {
	b.mu.Lock()
	b.removeLocked(call)
	b.mu.Unlock()
}

func (b *Bridge) removeLocked(call *Call) {
	for _, slot := range call.slots() {
		calls := b.pending[slot]
		for i, c := range calls {
			if c == call {
				calls = append(calls[:i:i], calls[i+1:]...)
				break
			}
		}
		if len(calls) == 0 {
			delete(b.pending, slot)
		} else {
			b.pending[slot] = calls
		}
	}
}

func (c *Call) slots() []string {
	switch {
	case c.Success != "" && c.Error != "" && c.Success != c.Error:
		return []string{c.Success, c.Error}
	case c.Success != "":
		return []string{c.Success}
	case c.Error != "":
		return []string{c.Error}
	}
	return nil
}

// NavigationTransport encodes envelopes into js2ios:// URLs and dispatches
// them through a Trigger.
type NavigationTransport struct {
	trigger *Trigger
}

func NewNavigationTransport(surface Surface, logger *slog.Logger) *NavigationTransport {
	return &NavigationTransport{trigger: NewTrigger(surface, logger)}
}

func (t *NavigationTransport) Send(ctx context.Context, env Envelope, _ Invoker) error {
	url, err := Encode(env)
	if err != nil {
		return err
	}
	t.trigger.Dispatch(url)
	return nil
}
