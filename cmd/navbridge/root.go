package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caffeineduck/navbridge/hostview"
	"github.com/caffeineduck/navbridge/internal/config"
	"github.com/caffeineduck/navbridge/native"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "navbridge",
	Short: "Page-to-native call bridge over js2ios:// navigations",
	Long: `navbridge - Call native functions from a web page by navigating to
js2ios:// URLs, and answer those calls from a native or mock host.

Configuration is read from NAVBRIDGE_* environment variables; flags
override them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: NAVBRIDGE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json (default: NAVBRIDGE_LOG_FORMAT)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		c.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		c.LogFormat = v
	}
	if cmd.Flags().Lookup("host") != nil {
		if v, _ := cmd.Flags().GetString("host"); v != "" {
			c.Host = v
		}
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := config.NewLogger(cmd.ErrOrStderr(), c.LogLevel, c.LogFormat)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

// newNativeRegistry binds the native functions a page can call. The feeder
// must be stopped by the caller.
func newNativeRegistry(period time.Duration, opts ...native.FeederOption) (*native.Registry, *native.TimelineFeeder) {
	registry := native.NewRegistry()

	opts = append([]native.FeederOption{native.WithFeederLogger(logger)}, opts...)
	feeder := native.NewTimelineFeeder(period, opts...)
	feeder.Install(registry)

	registry.Register("closeWebViewport", func(ctx context.Context, args []any) (any, error) {
		logger.Info("page asked to close the web view")
		return nil, nil
	})
	registry.Register("loadMediaAssetURL", func(ctx context.Context, args []any) (any, error) {
		logger.Info("page asked to load the home page")
		return nil, nil
	})
	return registry, feeder
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return 0, nil
	case "16mb":
		return hostview.MemoryLimit16MB, nil
	case "64mb":
		return hostview.MemoryLimit64MB, nil
	case "256mb":
		return hostview.MemoryLimit256MB, nil
	}
	return 0, fmt.Errorf("invalid memory limit %q (expected 16mb, 64mb or 256mb)", s)
}
