package mockhost

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
)

// Feed periodically invokes the timeline entry point with a position that
// advances by one period per tick.
type Feed struct {
	period time.Duration
	slot   string
	jitter func() float64
	inv    bridge.Invoker
	logger *slog.Logger

	mu      sync.Mutex
	count   int
	stopped bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type position struct {
	ContentTime         float64 `json:"contentTime"`
	TimespeedMultiplier float64 `json:"timespeedMultiplier"`
}

func newFeed(period time.Duration, slot string, jitter func() float64, inv bridge.Invoker, logger *slog.Logger) *Feed {
	return &Feed{
		period: period,
		slot:   slot,
		jitter: jitter,
		inv:    inv,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (f *Feed) Period() time.Duration {
	return f.period
}

// Ticks returns how many positions the feed has produced.
func (f *Feed) Ticks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Stop halts the feed: no position is produced once it returns. It does not
// wait for the feed goroutine, so it may be called from the update handler,
// and more than once.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stop) })
}

// Wait blocks until the feed goroutine has exited. It must not be called from
// the update handler.
func (f *Feed) Wait() {
	<-f.done
}

func (f *Feed) run() {
	defer close(f.done)
	ticker := time.NewTicker(f.period)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

func (f *Feed) tick() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.count++
	n := f.count
	f.mu.Unlock()

	elapsed := time.Duration(n) * f.period
	payload, _ := json.Marshal(position{
		ContentTime:         elapsed.Seconds() + f.jitter(),
		TimespeedMultiplier: 1.0,
	})
	if err := f.inv.Invoke(f.slot, string(payload)); err != nil {
		f.logger.Debug("timeline update not delivered", "slot", f.slot, "error", err)
	}
}
