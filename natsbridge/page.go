package natsbridge

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caffeineduck/navbridge/bridge"
	nats "github.com/nats-io/nats.go"
)

// Surface publishes navigations for one page.
type Surface struct {
	nc      *nats.Conn
	subject string
}

func NewSurface(nc *nats.Conn, prefix string) *Surface {
	return &Surface{nc: nc, subject: NavigateSubject(prefix)}
}

func (s *Surface) Attach(src string) (bridge.Element, error) {
	if err := s.nc.Publish(s.subject, []byte(src)); err != nil {
		return nil, fmt.Errorf("publish navigation: %w", err)
	}
	return published{}, nil
}

type published struct{}

func (published) Detach() {}

// Subscribe delivers the host's invocations for prefix to inv. The
// subscription is flushed to the server before it is returned so that no
// reply to a later navigation is missed. Every invocation is acknowledged so
// the host knows the page is still there.
func Subscribe(nc *nats.Conn, prefix string, inv bridge.Invoker, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sub, err := nc.Subscribe(InvokeSubject(prefix), func(msg *nats.Msg) {
		if msg.Reply != "" {
			defer msg.Respond(nil)
		}
		var in bridge.Invocation
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			logger.Warn("invalid invocation", "subject", msg.Subject, "error", err)
			return
		}
		if err := inv.Invoke(in.Callback, in.Reply); err != nil {
			logger.Debug("invocation not delivered", "callback", in.Callback, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", InvokeSubject(prefix), err)
	}
	if err := nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}
	return sub, nil
}
