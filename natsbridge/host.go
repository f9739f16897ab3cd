package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/native"
	nats "github.com/nats-io/nats.go"
)

// InvokeTimeout bounds how long the host waits for a page to acknowledge an
// invocation.
const InvokeTimeout = 5 * time.Second

// invoker sends invocations to the page that sent a navigation and waits for
// the page to acknowledge them. A page nobody answers for has gone away, so
// its session ends.
type invoker struct {
	nc      *nats.Conn
	subject string
	end     func()
}

func (i invoker) Invoke(slot, reply string) error {
	data, err := json.Marshal(bridge.Invocation{Callback: slot, Reply: reply})
	if err != nil {
		return fmt.Errorf("encode invocation: %w", err)
	}
	if _, err := i.nc.Request(i.subject, data, InvokeTimeout); err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			i.end()
		}
		return fmt.Errorf("invoke %s: %w", i.subject, err)
	}
	return nil
}

// invokeSubjectFor maps a navigate subject to the matching invoke subject,
// so a host subscribed with a wildcard prefix answers each page directly.
func invokeSubjectFor(navigate string) string {
	return strings.TrimSuffix(navigate, "."+navigateToken) + "." + invokeToken
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// sessions tracks one lifetime per page, keyed by its invoke subject. Native
// work started for a page is bound to its session and ends with it.
type sessions struct {
	parent context.Context
	mu     sync.Mutex
	active map[string]*session
}

func newSessions(parent context.Context) *sessions {
	return &sessions{parent: parent, active: make(map[string]*session)}
}

func (s *sessions) get(subject string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.active[subject]; ok && sess.ctx.Err() == nil {
		return sess
	}
	ctx, cancel := context.WithCancel(s.parent)
	sess := &session{ctx: ctx, cancel: cancel}
	s.active[subject] = sess
	return sess
}

func (s *sessions) end(subject string, sess *session) {
	s.mu.Lock()
	if s.active[subject] == sess {
		delete(s.active, subject)
	}
	s.mu.Unlock()
	sess.cancel()
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	active := s.active
	s.active = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range active {
		sess.cancel()
	}
}

// Serve answers navigations published under prefix with processor until ctx
// is done. prefix may contain wildcard tokens, e.g. "navbridge.*". Each page
// gets its own session, which ends when the page stops acknowledging
// invocations or when Serve returns.
func Serve(ctx context.Context, nc *nats.Conn, prefix string, processor *native.Processor, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	active := newSessions(ctx)
	defer active.closeAll()

	subject := NavigateSubject(prefix)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		target := invokeSubjectFor(msg.Subject)
		sess := active.get(target)
		inv := invoker{nc: nc, subject: target, end: func() {
			logger.Debug("page session ended", "subject", target)
			active.end(target, sess)
		}}
		if err := processor.Process(sess.ctx, string(msg.Data), inv); err != nil {
			logger.Warn("navigation not processed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	if err := nc.Flush(); err != nil {
		sub.Unsubscribe()
		return fmt.Errorf("flush subscription: %w", err)
	}
	logger.Info("serving navigations", "subject", subject)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && nc.IsConnected() {
		return fmt.Errorf("unsubscribe %s: %w", subject, err)
	}
	return nil
}
