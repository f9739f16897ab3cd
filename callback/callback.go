package callback

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"
)

// ErrUnknownSlot is returned when a host invokes a slot nothing was installed under.
var ErrUnknownSlot = errors.New("unknown callback slot")

// Func is a continuation invoked by the host with a single JSON-encoded string.
type Func func(reply string)

// Callback describes a continuation handed to the bridge.
type Callback struct {
	// Name binds the callback to an existing slot name. When set, Resolve
	// returns it unchanged and allocates nothing.
	Name string
	// Key is a stable identity token. Callbacks with equal keys under the
	// same purpose share one slot.
	Key string
	Fn  Func
}

// Of wraps fn. Its identity is the code pointer of fn.
func Of(fn Func) Callback {
	return Callback{Fn: fn}
}

// Keyed wraps fn with an explicit identity token.
func Keyed(key string, fn Func) Callback {
	return Callback{Key: key, Fn: fn}
}

// Named refers to a slot by name, typically one installed with Register.
func Named(name string) Callback {
	return Callback{Name: name}
}

// IsZero reports whether c carries neither a name nor a function.
func (c Callback) IsZero() bool {
	return c.Name == "" && c.Fn == nil
}

func (c Callback) identity() string {
	if c.Key != "" {
		return "key:" + c.Key
	}
	return fmt.Sprintf("code:%x", reflect.ValueOf(c.Fn).Pointer())
}

type slot struct {
	fn       Func
	identity string
}

// Registry maps slot identifiers to continuations.
type Registry struct {
	mu       sync.RWMutex
	slots    map[string]slot
	maxIndex map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		slots:    make(map[string]slot),
		maxIndex: make(map[string]int),
	}
}

// Resolve returns the slot identifier for cb under purpose, allocating a new
// slot only when no slot under purpose holds a callback with the same
// identity. It returns "" for a zero Callback.
func (r *Registry) Resolve(purpose string, cb Callback) string {
	if cb.Name != "" {
		if cb.Fn != nil {
			r.Register(cb.Name, cb.Fn)
		}
		return cb.Name
	}
	if cb.Fn == nil {
		return ""
	}

	id := cb.identity()

	r.mu.Lock()
	defer r.mu.Unlock()

	maxIndex, seen := r.maxIndex[purpose]
	if seen {
		for i := 0; i <= maxIndex; i++ {
			name := slotName(purpose, i)
			if s, ok := r.slots[name]; ok && s.identity == id {
				return name
			}
		}
		maxIndex++
	}

	name := slotName(purpose, maxIndex)
	r.slots[name] = slot{fn: cb.Fn, identity: id}
	r.maxIndex[purpose] = maxIndex
	return name
}

// Register installs fn under an explicit slot name, replacing any previous
// binding. Named slots do not take part in purpose indexing.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.slots[name] = slot{fn: fn, identity: "name:" + name}
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	s, ok := r.slots[name]
	r.mu.RUnlock()
	return s.fn, ok
}

// Invoke runs the continuation installed under name with reply. The registry
// lock is not held while the continuation runs.
func (r *Registry) Invoke(name, reply string) error {
	fn, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, name)
	}
	fn(reply)
	return nil
}

// MaxIndex returns the highest index allocated under purpose.
func (r *Registry) MaxIndex(purpose string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.maxIndex[purpose]
	return i, ok
}

// List returns all slot names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func slotName(purpose string, index int) string {
	return purpose + strconv.Itoa(index)
}
