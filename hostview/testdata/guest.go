//go:build wasip1

// Timeline page for testing the runner against a real WASI module.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o guest.wasm guest.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/stream"
	"github.com/caffeineduck/navbridge/timeline"
)

func main() {
	want := 3
	if len(os.Args) > 1 {
		if n, err := strconv.Atoi(os.Args[1]); err == nil {
			want = n
		}
	}

	ctx := context.Background()

	b := bridge.NewNavigation(stream.NewSurface(os.Stderr))

	updates := 0
	page := timeline.NewPage(b,
		timeline.WithMessageSink(func(msg string) {
			fmt.Println("registered:", msg)
		}),
		timeline.WithAlerter(timeline.AlerterFunc(func(msg string) {
			fmt.Println("alert:", msg)
			os.Exit(0)
		})),
		timeline.WithUpdateHandler(func(p timeline.Position) {
			updates++
			fmt.Printf("update %d contentTime=%.3f\n", updates, p.ContentTime)
			if updates >= want {
				os.Exit(0)
			}
		}),
	)
	page.Install()

	if _, err := page.RegisterForTimelineUpdates(ctx, timeline.WithPeriod(10*time.Millisecond, false)); err != nil {
		fmt.Fprintln(os.Stderr, "register:", err)
		os.Exit(1)
	}

	if err := stream.Serve(ctx, os.Stdin, b, nil); err != nil {
		fmt.Fprintln(os.Stderr, "serve:", err)
		os.Exit(1)
	}
}
