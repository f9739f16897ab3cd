package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caffeineduck/navbridge/native"
	"github.com/caffeineduck/navbridge/natsbridge"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer pages over NATS as the native host",
	Long: `Start the native host on NATS. Every page publishing under
NAVBRIDGE_SUBJECT_PREFIX.<session>.navigate is answered on
NAVBRIDGE_SUBJECT_PREFIX.<session>.invoke.

Native functions:
  registerForTimelineUpdates   periodic updateTimeline calls
  closeWebViewport             logged
  loadMediaAssetURL            logged`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("nats-url", "", "NATS server URL (default: NAVBRIDGE_NATS_URL)")
	serveCmd.Flags().Float64("start", 0, "Programme position in seconds when serving starts")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("nats-url")
	if url == "" {
		url = cfg.NATSURL
	}
	start, _ := cmd.Flags().GetFloat64("start")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nc, err := natsbridge.Connect(ctx, url, cfg.ServiceName,
		natsbridge.WithRetries(cfg.ConnectRetries, 500*time.Millisecond),
		natsbridge.WithLogger(logger))
	if err != nil {
		return err
	}
	defer nc.Close()

	registry, feeder := newNativeRegistry(cfg.TimelinePeriod, native.WithStartPosition(start))
	processor := native.NewProcessor(registry, native.WithLogger(logger))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return natsbridge.Serve(ctx, nc, cfg.SubjectPrefix+".*", processor, logger)
	})
	g.Go(func() error {
		<-ctx.Done()
		feeder.Stop()
		feeder.Wait()
		return nil
	})
	return g.Wait()
}
