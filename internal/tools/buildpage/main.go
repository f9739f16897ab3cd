// Command buildpage compiles a page to WASI for the hostview runner.
//
//	go run ./internal/tools/buildpage <page.go> <output.wasm>
package main

import (
	"fmt"
	"os"
	"os/exec"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: buildpage <page.go> <output.wasm>")
		os.Exit(1)
	}

	source, output := os.Args[1], os.Args[2]

	src, err := os.Stat(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if out, err := os.Stat(output); err == nil && !out.ModTime().Before(src.ModTime()) {
		return
	}

	cmd := exec.Command("go", "build", "-o", output, source)
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
}
