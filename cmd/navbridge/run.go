package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caffeineduck/navbridge/hostview"
	"github.com/caffeineduck/navbridge/native"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <page.wasm> [args...]",
	Short: "Run a page compiled to WASI inside a sandboxed web view",
	Long: `Run a page compiled to WASI (GOOS=wasip1 GOARCH=wasm) as if it were
loaded in a web view. The page reaches the native host only through
navigation frames on stderr; invocations are written to its stdin.

The page's stdout is printed; other stderr output is printed to stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	runCmd.Flags().String("memory", "", "Memory limit: 16mb, 64mb, 256mb")
	runCmd.Flags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	memory, _ := cmd.Flags().GetString("memory")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	limit, err := parseMemoryLimit(memory)
	if err != nil {
		return err
	}

	registry, feeder := newNativeRegistry(cfg.TimelinePeriod)
	defer feeder.Stop()

	opts := []hostview.RunnerOption{hostview.WithLogger(logger)}
	if !noCache {
		opts = append(opts, hostview.WithDiskCache())
	}
	if limit > 0 {
		opts = append(opts, hostview.WithMemoryLimit(limit))
	}

	runner, err := hostview.New(native.NewProcessor(registry, native.WithLogger(logger)), opts...)
	if err != nil {
		return err
	}
	defer runner.Close()

	pageArgs := append([]string{"page"}, args[1:]...)
	result := runner.Run(cmd.Context(), wasm, hostview.WithTimeout(timeout), hostview.WithArgs(pageArgs...))

	fmt.Fprint(cmd.OutOrStdout(), result.Output)
	if result.Diagnostics != "" {
		fmt.Fprint(cmd.ErrOrStderr(), result.Diagnostics)
	}
	logger.Debug("page finished", "navigations", result.Navigations, "duration", result.Duration)
	return result.Error
}
