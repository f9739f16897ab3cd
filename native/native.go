package native

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/caffeineduck/navbridge/bridge"
)

var ErrUnknownFunction = errors.New("unknown function")

// Func is a native operation callable from the page.
type Func func(ctx context.Context, args []any) (any, error)

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type successReply struct {
	Result any `json:"result"`
}

type invokerKey struct{}

// InvokerFromContext returns the invoker of the page that made the current
// call. Native functions use it to call back into the page later.
func InvokerFromContext(ctx context.Context) (bridge.Invoker, bool) {
	inv, ok := ctx.Value(invokerKey{}).(bridge.Invoker)
	return inv, ok
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = l
	}
}

// Processor turns navigations into native calls and answers them.
type Processor struct {
	registry *Registry
	logger   *slog.Logger
}

func NewProcessor(registry *Registry, opts ...ProcessorOption) *Processor {
	p := &Processor{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one navigation. It returns an error only when the URL is
// not a bridge call or the reply could not be delivered; native failures are
// reported to the page's error slot.
func (p *Processor) Process(ctx context.Context, rawURL string, inv bridge.Invoker) error {
	env, err := bridge.Decode(rawURL)
	if err != nil {
		return err
	}
	p.logger.Debug("native call", "function", env.FunctionName, "args", len(env.Args))

	fn, ok := p.registry.Get(env.FunctionName)
	if !ok {
		return p.fault(env, inv, fmt.Errorf("%w: %s", ErrUnknownFunction, env.FunctionName))
	}

	result, err := fn(context.WithValue(ctx, invokerKey{}, inv), env.Args)
	if err != nil {
		return p.fault(env, inv, err)
	}
	if env.Success == "" {
		return nil
	}

	data, err := json.Marshal(successReply{Result: result})
	if err != nil {
		return p.fault(env, inv, fmt.Errorf("encode result: %w", err))
	}
	return inv.Invoke(env.Success, string(data))
}

func (p *Processor) fault(env bridge.Envelope, inv bridge.Invoker, cause error) error {
	p.logger.Debug("native call failed", "function", env.FunctionName, "error", cause)
	if env.Error == "" {
		return nil
	}
	data, _ := json.Marshal(bridge.Reply{Message: cause.Error()})
	return inv.Invoke(env.Error, string(data))
}
