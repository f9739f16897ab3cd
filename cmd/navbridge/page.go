package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/internal/config"
	"github.com/caffeineduck/navbridge/mockhost"
	"github.com/caffeineduck/navbridge/natsbridge"
	"github.com/caffeineduck/navbridge/timeline"
	"github.com/spf13/cobra"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Run the timeline page against a host",
	Long: `Run the timeline page: register for timeline updates and print each
update until enough have arrived.

The host is chosen with --host or NAVBRIDGE_HOST:
  - mock: an in-process mock host, no native side needed
  - nats: a native host reached over NATS (see "navbridge serve")`,
	Args: cobra.NoArgs,
	RunE: runPage,
}

func init() {
	pageCmd.Flags().String("host", "", "Host: mock, nats (default: NAVBRIDGE_HOST)")
	pageCmd.Flags().Int("updates", 3, "Number of timeline updates to wait for")
	pageCmd.Flags().Duration("period", 0, "Update period to request (default: NAVBRIDGE_TIMELINE_PERIOD)")
	pageCmd.Flags().Duration("timeout", 30*time.Second, "Give up after this long")
	rootCmd.AddCommand(pageCmd)
}

// newPageBridge connects a page-side bridge to the configured host.
func newPageBridge(ctx context.Context) (*bridge.Bridge, func(), error) {
	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithDefaultTimeout(cfg.CallTimeout),
	}

	switch cfg.Host {
	case config.HostNATS:
		nc, err := natsbridge.Connect(ctx, cfg.NATSURL, cfg.ServiceName,
			natsbridge.WithRetries(cfg.ConnectRetries, 500*time.Millisecond),
			natsbridge.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		prefix := natsbridge.SessionPrefix(cfg.SubjectPrefix)
		b := bridge.NewNavigation(natsbridge.NewSurface(nc, prefix), opts...)
		sub, err := natsbridge.Subscribe(nc, prefix, b, logger)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return b, func() {
			sub.Unsubscribe()
			nc.Close()
		}, nil
	default:
		host := mockhost.New(mockhost.WithLogger(logger))
		return bridge.New(host, opts...), func() { host.Close() }, nil
	}
}

func runPage(cmd *cobra.Command, args []string) error {
	want, _ := cmd.Flags().GetInt("updates")
	period, _ := cmd.Flags().GetDuration("period")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if period <= 0 {
		period = cfg.TimelinePeriod
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	b, closeBridge, err := newPageBridge(ctx)
	if err != nil {
		return err
	}
	defer closeBridge()

	messages := make(chan string, 1)
	updates := make(chan timeline.Position, want+1)
	errOut := cmd.ErrOrStderr()

	page := timeline.NewPage(b,
		timeline.WithLogger(logger),
		timeline.WithMessageSink(func(msg string) {
			select {
			case messages <- msg:
			default:
			}
		}),
		timeline.WithAlerter(timeline.AlerterFunc(func(msg string) {
			fmt.Fprintln(errOut, "alert:", msg)
		})),
		timeline.WithUpdateHandler(func(p timeline.Position) {
			select {
			case updates <- p:
			default:
			}
		}),
	)
	page.Install()

	call, err := page.RegisterForTimelineUpdates(ctx, timeline.WithPeriod(period, cfg.TimelineAdhoc))
	if err != nil {
		return err
	}
	if _, err := call.Wait(ctx); err != nil {
		return fmt.Errorf("register for timeline updates: %w", err)
	}

	out := cmd.OutOrStdout()
	select {
	case msg := <-messages:
		fmt.Fprintln(out, msg)
	default:
	}

	for n := 0; n < want; {
		select {
		case p := <-updates:
			n++
			fmt.Fprintf(out, "update %d: contentTime=%.3f timespeedMultiplier=%.1f\n", n, p.ContentTime, p.TimespeedMultiplier)
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout after %v", timeout)
			}
			return ctx.Err()
		}
	}
	return nil
}
