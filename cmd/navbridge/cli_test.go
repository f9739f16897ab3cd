package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"navbridge",
		"js2ios://",
		"page",
		"mock",
		"serve",
		"run",
		"encode",
		"decode",
		"--log-level",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIEncode(t *testing.T) {
	output, err := executeCommand(rootCmd, "encode", "registerForTimelineUpdates", "[1000,true]", "--success", "done", "--error", "failed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `js2ios://{"functionname":"registerForTimelineUpdates","success":"done","error":"failed","args":[1000,true]}`
	if strings.TrimSpace(output) != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestCLIEncodeInvalidArgs(t *testing.T) {
	_, err := executeCommand(rootCmd, "encode", "loadMediaAssetURL", "{not json")
	if err == nil {
		t.Fatal("expected error for invalid args")
	}
	if !strings.Contains(err.Error(), "JSON array") {
		t.Errorf("error = %v, want mention of JSON array", err)
	}
}

func TestCLIDecode(t *testing.T) {
	output, err := executeCommand(rootCmd, "decode", `js2ios:%7B%22functionname%22%3A%22closeWebViewport%22%7D`)
	if err == nil {
		t.Fatalf("expected error for URL missing the // separator, got output %q", output)
	}

	output, err = executeCommand(rootCmd, "decode", `js2ios://%7B%22functionname%22%3A%22closeWebViewport%22%7D`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, `"functionname": "closeWebViewport"`) {
		t.Errorf("output = %q, want decoded function name", output)
	}
}

func TestCLIDecodeNotNavigation(t *testing.T) {
	_, err := executeCommand(rootCmd, "decode", "https://example.com")
	if err == nil {
		t.Error("expected error for non-bridge URL")
	}
}

func TestCLIPageWithMockHost(t *testing.T) {
	output, err := executeCommand(rootCmd, "page", "--host", "mock", "--period", "10ms", "--updates", "2", "--timeout", "10s")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, output)
	}

	for _, phrase := range []string{
		"registered for timeline updates.",
		"update 1: contentTime=",
		"update 2: contentTime=",
		"timespeedMultiplier=1.0",
	} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output should contain %q, got %q", phrase, output)
		}
	}
}

func TestCLIPageUnknownHost(t *testing.T) {
	_, err := executeCommand(rootCmd, "page", "--host", "ios")
	if err == nil {
		t.Fatal("expected error for unknown host")
	}
	if !strings.Contains(err.Error(), "NAVBRIDGE_HOST") {
		t.Errorf("error = %v", err)
	}
}

func TestCLIMock(t *testing.T) {
	input := strings.Join([]string{
		`js2ios://{"functionname":"closeWebViewport","success":"s0"}`,
		`not a navigation`,
		`js2ios://{"functionname":"loadMediaAssetURL","error":"e0"}`,
	}, "\n")
	rootCmd.SetIn(strings.NewReader(input))
	defer rootCmd.SetIn(nil)

	output, err := executeCommand(rootCmd, "mock", "--fault", "loadMediaAssetURL=offline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, line := range []string{
		`{"callback":"s0","reply":"{\"result\":\"registered for timeline updates.\"}"}`,
		`{"callback":"e0","reply":"{\"message\":\"offline\"}"}`,
	} {
		if !strings.Contains(output, line) {
			t.Errorf("output should contain %s, got %q", line, output)
		}
	}
	if !strings.Contains(output, "skipping input") {
		t.Errorf("invalid line should be logged, got %q", output)
	}
}

func TestCLIRunMissingFile(t *testing.T) {
	_, err := executeCommand(rootCmd, "run", "does-not-exist.wasm")
	if err == nil {
		t.Fatal("expected error for missing page")
	}
	if !strings.Contains(err.Error(), "read page") {
		t.Errorf("error = %v", err)
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"", 0, false},
		{"16mb", 256, false},
		{"64MB", 1024, false},
		{"256mb", 4096, false},
		{"1tb", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMemoryLimit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMemoryLimit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMemoryLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
