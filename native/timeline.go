package native

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	FuncRegisterForTimelineUpdates = "registerForTimelineUpdates"
	TimelineUpdateSlot             = "updateTimeline"
)

var ErrNoInvoker = errors.New("no page invoker in context")

// Position is a programme timeline position reported to the page.
type Position struct {
	ContentTime         float64 `json:"contentTime"`
	TimespeedMultiplier float64 `json:"timespeedMultiplier"`
}

type subscriber struct {
	adhoc    bool
	send     func(Position)
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *subscriber) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *subscriber) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// FeederOption configures a TimelineFeeder.
type FeederOption func(*TimelineFeeder)

// WithStartPosition sets the content time, in seconds, at which the feeder starts.
func WithStartPosition(seconds float64) FeederOption {
	return func(f *TimelineFeeder) {
		f.offset = seconds
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FeederOption {
	return func(f *TimelineFeeder) {
		f.now = now
	}
}

func WithFeederLogger(l *slog.Logger) FeederOption {
	return func(f *TimelineFeeder) {
		f.logger = l
	}
}

// TimelineFeeder answers registerForTimelineUpdates and then reports the
// programme position to every registered page once per period. Pages that
// registered with adhoc set also get an immediate update when the speed
// changes.
type TimelineFeeder struct {
	period time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	offset float64
	speed  float64
	anchor time.Time
	subs   []*subscriber
	closed bool
	wg     sync.WaitGroup
}

func NewTimelineFeeder(period time.Duration, opts ...FeederOption) *TimelineFeeder {
	f := &TimelineFeeder{
		period: period,
		now:    time.Now,
		logger: slog.Default(),
		speed:  1.0,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.anchor = f.now()
	return f
}

// Install registers the feeder's native function in r.
func (f *TimelineFeeder) Install(r *Registry) {
	r.Register(FuncRegisterForTimelineUpdates, f.Register)
}

// Register is the native registerForTimelineUpdates. An optional first
// argument overrides the period in milliseconds; an optional second argument
// enables adhoc updates. Updates stop when ctx is done or the feeder stops.
func (f *TimelineFeeder) Register(ctx context.Context, args []any) (any, error) {
	inv, ok := InvokerFromContext(ctx)
	if !ok {
		return nil, ErrNoInvoker
	}

	period := f.period
	if len(args) > 0 {
		ms, ok := args[0].(float64)
		if !ok || ms <= 0 {
			return nil, fmt.Errorf("invalid period %v", args[0])
		}
		period = time.Duration(ms * float64(time.Millisecond))
	}
	if period <= 0 {
		return nil, fmt.Errorf("invalid period %v", period)
	}
	adhoc := false
	if len(args) > 1 {
		adhoc, _ = args[1].(bool)
	}

	sub := &subscriber{
		adhoc: adhoc,
		stop:  make(chan struct{}),
	}
	sub.send = func(p Position) {
		if sub.stopped() {
			return
		}
		payload, _ := json.Marshal(p)
		if err := inv.Invoke(TimelineUpdateSlot, string(payload)); err != nil {
			f.logger.Debug("timeline update not delivered", "error", err)
		}
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, errors.New("timeline feeder stopped")
	}
	f.subs = append(f.subs, sub)
	f.wg.Add(1)
	f.mu.Unlock()

	go f.run(ctx, sub, period)
	return "registered for timeline updates.", nil
}

func (f *TimelineFeeder) run(ctx context.Context, sub *subscriber, period time.Duration) {
	defer f.wg.Done()
	defer f.remove(sub)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stop:
			return
		case <-ticker.C:
			sub.send(f.Position())
		}
	}
}

// Position returns the current programme position.
func (f *TimelineFeeder) Position() Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positionLocked()
}

func (f *TimelineFeeder) positionLocked() Position {
	elapsed := f.now().Sub(f.anchor).Seconds()
	return Position{
		ContentTime:         f.offset + elapsed*f.speed,
		TimespeedMultiplier: f.speed,
	}
}

// SetSpeed changes the playback speed, 0 meaning paused, and pushes an adhoc
// update to pages that asked for one.
func (f *TimelineFeeder) SetSpeed(speed float64) {
	f.mu.Lock()
	pos := f.positionLocked()
	f.offset = pos.ContentTime
	f.anchor = f.now()
	f.speed = speed
	pos = f.positionLocked()
	var adhoc []*subscriber
	for _, s := range f.subs {
		if s.adhoc {
			adhoc = append(adhoc, s)
		}
	}
	f.mu.Unlock()

	for _, s := range adhoc {
		s.send(pos)
	}
}

func (f *TimelineFeeder) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s == sub {
			f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of registered pages.
func (f *TimelineFeeder) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Stop ends all updates and refuses new registrations. No new update starts
// once it returns. It does not wait for the feed goroutines, so a page may call it
// from its update handler.
func (f *TimelineFeeder) Stop() {
	f.mu.Lock()
	f.closed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	for _, s := range subs {
		s.halt()
	}
}

// Wait blocks until every feed goroutine has exited. Call it after Stop, never
// from an update handler.
func (f *TimelineFeeder) Wait() {
	f.wg.Wait()
}
