package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/mockhost"
	"github.com/google/go-cmp/cmp"
)

type navigationLog struct {
	mu   sync.Mutex
	envs []bridge.Envelope
}

func (l *navigationLog) observe(t *testing.T) func(string) {
	return func(src string) {
		env, err := bridge.Decode(src)
		if err != nil {
			t.Errorf("Decode failed: %v", err)
			return
		}
		l.mu.Lock()
		l.envs = append(l.envs, env)
		l.mu.Unlock()
	}
}

func (l *navigationLog) all() []bridge.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bridge.Envelope(nil), l.envs...)
}

func newNavigationPage(t *testing.T, opts ...Option) (*Page, *bridge.Bridge, *navigationLog) {
	t.Helper()
	log := &navigationLog{}
	b := bridge.NewNavigation(bridge.NewDocument(log.observe(t)))
	p := NewPage(b, opts...)
	p.Install()
	return p, b, log
}

func TestRegisterForTimelineUpdatesWithMock(t *testing.T) {
	host := mockhost.New()
	defer host.Close()

	var message string
	p := NewPage(bridge.New(host), WithMessageSink(func(s string) { message = s }))
	p.Install()

	call, err := p.RegisterForTimelineUpdates(context.Background())
	if err != nil {
		t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
	}
	if call.State() != bridge.StateResolved {
		t.Errorf("state = %v, want resolved", call.State())
	}
	if message != "registered for timeline updates." {
		t.Errorf("message = %q", message)
	}
}

func TestRegisterForTimelineUpdatesMockFeed(t *testing.T) {
	host := mockhost.New(mockhost.WithJitter(func() float64 { return 0 }))
	defer host.Close()

	updates := make(chan Position, 16)
	p := NewPage(bridge.New(host), WithUpdateHandler(func(pos Position) {
		select {
		case updates <- pos:
		default:
		}
	}))
	p.Install()

	if _, err := p.RegisterForTimelineUpdates(context.Background(), WithPeriod(10*time.Millisecond, true)); err != nil {
		t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
	}

	var prev float64
	for i := 1; i <= 3; i++ {
		select {
		case pos := <-updates:
			if pos.ContentTime <= prev {
				t.Errorf("update %d contentTime = %v, not after %v", i, pos.ContentTime, prev)
			}
			prev = pos.ContentTime
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for update %d", i)
		}
	}

	host.Close()
	if _, n := p.Position(); n < 3 {
		t.Errorf("updates = %d, want at least 3", n)
	}
}

func TestRegisterForTimelineUpdatesNavigation(t *testing.T) {
	p, _, log := newNavigationPage(t)

	if _, err := p.RegisterForTimelineUpdates(context.Background()); err != nil {
		t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
	}

	want := []bridge.Envelope{{
		FunctionName: "registerForTimelineUpdates",
		Success:      "registerForTimelineUpdates_successCallback0",
		Error:        "onErrorCallingNativeFunction",
	}}
	if diff := cmp.Diff(want, log.all()); diff != "" {
		t.Errorf("navigations mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterForTimelineUpdatesReusesSlots(t *testing.T) {
	p, b, log := newNavigationPage(t)

	for i := 0; i < 3; i++ {
		if _, err := p.RegisterForTimelineUpdates(context.Background()); err != nil {
			t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
		}
	}

	envs := log.all()
	for _, env := range envs[1:] {
		if env.Success != envs[0].Success || env.Error != envs[0].Error {
			t.Errorf("slots drifted: %+v vs %+v", env, envs[0])
		}
	}
	if max, _ := b.Registry().MaxIndex("registerForTimelineUpdates_successCallback"); max != 0 {
		t.Errorf("max index = %d, want 0", max)
	}
}

func TestRegisterWithPeriodSendsArgs(t *testing.T) {
	p, _, log := newNavigationPage(t)

	if _, err := p.RegisterForTimelineUpdates(context.Background(), WithPeriod(time.Second, false)); err != nil {
		t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
	}

	envs := log.all()
	if len(envs) != 1 {
		t.Fatalf("navigations = %d, want 1", len(envs))
	}
	if diff := cmp.Diff([]any{float64(1000), false}, envs[0].Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestHostFaultAlerts(t *testing.T) {
	var alerts []string
	p, b, log := newNavigationPage(t, WithAlerter(AlerterFunc(func(m string) { alerts = append(alerts, m) })))

	call, err := p.RegisterForTimelineUpdates(context.Background())
	if err != nil {
		t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
	}
	if err := b.Invoke(log.all()[0].Error, `{"message":"sync timeline unavailable"}`); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if len(alerts) != 1 || alerts[0] != "sync timeline unavailable" {
		t.Errorf("alerts = %v", alerts)
	}
	if call.State() != bridge.StateFaulted {
		t.Errorf("state = %v, want faulted", call.State())
	}
}

func TestErrorSlotIsNamed(t *testing.T) {
	var alerts []string
	p, b, log := newNavigationPage(t, WithAlerter(AlerterFunc(func(m string) { alerts = append(alerts, m) })))

	if err := b.Invoke(ErrorSlot, `{"message":"before any call"}`); err != nil {
		t.Fatalf("Invoke(%q) failed: %v", ErrorSlot, err)
	}
	if _, err := p.RegisterForTimelineUpdates(context.Background(), WithPeriod(time.Second, true)); err != nil {
		t.Fatalf("RegisterForTimelineUpdates failed: %v", err)
	}

	if got := log.all()[0].Error; got != "onErrorCallingNativeFunction" {
		t.Errorf("error slot = %q, want %q", got, "onErrorCallingNativeFunction")
	}
	if _, ok := b.Registry().MaxIndex("registerForTimelineUpdates_errorCallback"); ok {
		t.Error("error continuation took an indexed slot")
	}
	if len(alerts) != 1 || alerts[0] != "before any call" {
		t.Errorf("alerts = %v", alerts)
	}
}

func TestOnErrorWithoutMessage(t *testing.T) {
	var alerts []string
	p := NewPage(bridge.New(mockhost.New()), WithAlerter(AlerterFunc(func(m string) { alerts = append(alerts, m) })))

	p.OnErrorCallingNativeFunction("plain failure")
	if len(alerts) != 1 || alerts[0] != "plain failure" {
		t.Errorf("alerts = %v", alerts)
	}
}

func TestCloseAndHomeCarryNoCallbacks(t *testing.T) {
	p, _, log := newNavigationPage(t)

	if _, err := p.CloseWebViewAndShowExperienceView(context.Background()); err != nil {
		t.Fatalf("CloseWebViewAndShowExperienceView failed: %v", err)
	}
	if _, err := p.LoadHomePage(context.Background()); err != nil {
		t.Fatalf("LoadHomePage failed: %v", err)
	}

	want := []bridge.Envelope{
		{FunctionName: "closeWebViewport"},
		{FunctionName: "loadMediaAssetURL"},
	}
	if diff := cmp.Diff(want, log.all()); diff != "" {
		t.Errorf("navigations mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateTimelineThroughSlot(t *testing.T) {
	var got []Position
	p, b, _ := newNavigationPage(t, WithUpdateHandler(func(pos Position) { got = append(got, pos) }))

	if err := b.Invoke(UpdateSlot, `{"contentTime":12.5,"timespeedMultiplier":1.0}`); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	want := []Position{{ContentTime: 12.5, TimespeedMultiplier: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	last, n := p.Position()
	if n != 1 || last.ContentTime != 12.5 {
		t.Errorf("Position() = %+v, %d", last, n)
	}
}

func TestUpdateTimelineRejectsBadPayload(t *testing.T) {
	p := NewPage(bridge.New(mockhost.New()))
	if err := p.UpdateTimeline("{not json"); err == nil {
		t.Error("expected error, got nil")
	}
	if _, n := p.Position(); n != 0 {
		t.Errorf("updates = %d, want 0", n)
	}
}
