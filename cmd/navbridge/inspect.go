package main

import (
	"encoding/json"
	"fmt"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/callback"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <function> [args-json]",
	Short: "Print the js2ios:// URL for a native call",
	Long: `Print the js2ios:// URL a page navigates to when calling a native
function. Arguments are given as a JSON array.

  navbridge encode registerForTimelineUpdates '[1000,true]' --success done`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <url>",
	Short: "Print the call carried by a js2ios:// URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	encodeCmd.Flags().String("success", "", "Success slot name")
	encodeCmd.Flags().String("error", "", "Error slot name")
	rootCmd.AddCommand(encodeCmd, decodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	success, _ := cmd.Flags().GetString("success")
	failure, _ := cmd.Flags().GetString("error")

	var callArgs []any
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
			return fmt.Errorf("args must be a JSON array: %w", err)
		}
	}

	var onSuccess, onError callback.Callback
	if success != "" {
		onSuccess = callback.Named(success)
	}
	if failure != "" {
		onError = callback.Named(failure)
	}

	env, err := bridge.NewEnvelope(callback.NewRegistry(), args[0], callArgs, onSuccess, onError)
	if err != nil {
		return err
	}
	url, err := bridge.Encode(env)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	env, err := bridge.Decode(args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
