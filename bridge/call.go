package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrTimeout = errors.New("native call timed out")

// State is the lifecycle position of a Call.
type State int

const (
	StateIdle State = iota
	StatePending
	StateResolved
	StateFaulted
	StateTimedOut
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFaulted:
		return "faulted"
	case StateTimedOut:
		return "timed out"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FaultError is a fault reported by the host through an error slot.
type FaultError struct {
	FunctionName string
	Message      string
	Reply        string
}

func (e *FaultError) Error() string {
	if e.Message == "" {
		return "native fault in " + e.FunctionName
	}
	return fmt.Sprintf("native fault in %s: %s", e.FunctionName, e.Message)
}

func newFaultError(functionName, reply string) *FaultError {
	fe := &FaultError{FunctionName: functionName, Reply: reply}
	var r Reply
	if json.Unmarshal([]byte(reply), &r) == nil {
		fe.Message = r.Message
	}
	return fe
}

// Call tracks one native call from dispatch until the host answers, the call
// times out or its context is canceled. A call whose envelope names no slots
// cannot be answered and stays pending unless it times out.
type Call struct {
	FunctionName string
	Success      string
	Error        string

	mu      sync.Mutex
	state   State
	reply   string
	err     error
	done    chan struct{}
	release func()
	bridge  *Bridge
}

func newCall(b *Bridge, env Envelope) *Call {
	return &Call{
		FunctionName: env.FunctionName,
		Success:      env.Success,
		Error:        env.Error,
		state:        StatePending,
		done:         make(chan struct{}),
		bridge:       b,
	}
}

func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the call leaves the pending state.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Reply returns the payload the host passed to either slot.
func (c *Call) Reply() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply
}

// Err is nil while pending and after a successful reply. It is a *FaultError
// after an error reply, wraps ErrTimeout after a timeout and is the context
// error after cancellation.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the call completes or ctx is done.
func (c *Call) Wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.Reply(), c.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel abandons the call. A later reply still runs the slot continuation.
func (c *Call) Cancel() {
	c.bridge.forget(c)
	c.finish(StateCanceled, "", context.Canceled)
}

func (c *Call) expire(cause error) {
	c.bridge.forget(c)
	if errors.Is(cause, context.DeadlineExceeded) {
		c.finish(StateTimedOut, "", fmt.Errorf("%w: %s", ErrTimeout, c.FunctionName))
		return
	}
	c.finish(StateCanceled, "", cause)
}

func (c *Call) finish(state State, reply string, err error) bool {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		return false
	}
	c.state = state
	c.reply = reply
	c.err = err
	release := c.release
	c.release = nil
	close(c.done)
	c.mu.Unlock()

	if release != nil {
		release()
	}
	return true
}

func (c *Call) arm(release func()) {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		release()
		return
	}
	c.release = release
	c.mu.Unlock()
}
