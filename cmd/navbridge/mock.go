package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/mockhost"
	"github.com/caffeineduck/navbridge/stream"
	"github.com/spf13/cobra"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Answer navigations read from stdin with the mock host",
	Long: `Run the mock host over stdio for pages living in another process.

Each input line is a js2ios:// URL. Each invocation is written to stdout as
one JSON line:

  {"callback":"<slot>","reply":"<json reply>"}

Timeline feeds keep running until stdin is closed or the process is
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runMock,
}

func init() {
	mockCmd.Flags().StringToString("reply", nil, "Scripted reply per function: name=json (repeatable)")
	mockCmd.Flags().StringToString("fault", nil, "Scripted fault per function: name=message (repeatable)")
	rootCmd.AddCommand(mockCmd)
}

func runMock(cmd *cobra.Command, args []string) error {
	replies, _ := cmd.Flags().GetStringToString("reply")
	faults, _ := cmd.Flags().GetStringToString("fault")

	opts := []mockhost.Option{mockhost.WithLogger(logger)}
	for name, reply := range replies {
		opts = append(opts, mockhost.WithReply(name, reply))
	}
	for name, message := range faults {
		opts = append(opts, mockhost.WithFault(name, message))
	}
	host := mockhost.New(opts...)
	defer host.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	inv := stream.NewInvocationWriter(cmd.OutOrStdout())
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if line == "" {
				continue
			}
			env, err := bridge.Decode(line)
			if err != nil {
				logger.Warn("skipping input", "error", err)
				continue
			}
			if err := host.Send(ctx, env, inv); err != nil {
				logger.Warn("mock host failed", "function", env.FunctionName, "error", err)
			}
		}
	}
}
