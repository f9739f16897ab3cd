package bridge

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strings"
	"testing"

	"github.com/caffeineduck/navbridge/callback"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeRoundTrip(t *testing.T) {
	env := Envelope{
		FunctionName: "x",
		Success:      "x_successCallback0",
		Error:        "x_errorCallback0",
		Args:         []any{1, "a"},
	}

	u, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasPrefix(u, Scheme) {
		t.Fatalf("url = %q, want prefix %q", u, Scheme)
	}

	got, err := Decode(u)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := Envelope{
		FunctionName: "x",
		Success:      "x_successCallback0",
		Error:        "x_errorCallback0",
		Args:         []any{float64(1), "a"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "function only",
			env:  Envelope{FunctionName: "closeWebViewport"},
			want: `js2ios://{"functionname":"closeWebViewport"}`,
		},
		{
			name: "callbacks",
			env:  Envelope{FunctionName: "registerForTimelineUpdates", Success: "s0", Error: "e0"},
			want: `js2ios://{"functionname":"registerForTimelineUpdates","success":"s0","error":"e0"}`,
		},
		{
			name: "args",
			env:  Envelope{FunctionName: "registerForTimelineUpdates", Args: []any{1000, true}},
			want: `js2ios://{"functionname":"registerForTimelineUpdates","args":[1000,true]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.env)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("url = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeRejectsEmptyFunctionName(t *testing.T) {
	_, err := Encode(Envelope{})
	if !errors.Is(err, ErrEmptyFunctionName) {
		t.Errorf("err = %v, want ErrEmptyFunctionName", err)
	}
}

func TestEncodeFaultOnUnserializableArg(t *testing.T) {
	_, err := Encode(Envelope{FunctionName: "x", Args: []any{math.Inf(1)}})
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want *EncodeError", err)
	}
	if encErr.FunctionName != "x" {
		t.Errorf("function = %q, want %q", encErr.FunctionName, "x")
	}
	var unsupported *json.UnsupportedValueError
	if !errors.As(err, &unsupported) {
		t.Errorf("err should wrap *json.UnsupportedValueError, got %v", err)
	}
}

func TestDecodeEscapedURL(t *testing.T) {
	raw := Scheme + url.PathEscape(`{"functionname":"loadMediaAssetURL","success":"ok0"}`)

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.FunctionName != "loadMediaAssetURL" || got.Success != "ok0" {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"other scheme", "https://example.com", ErrNotNavigation},
		{"missing function", `js2ios://{"success":"s0"}`, ErrEmptyFunctionName},
		{"bad json", `js2ios://{invalid}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewEnvelopeResolvesPurposes(t *testing.T) {
	r := callback.NewRegistry()

	env, err := NewEnvelope(r, "registerForTimelineUpdates", nil,
		callback.Of(func(string) {}), callback.Of(func(string) {}))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.Success != "registerForTimelineUpdates_successCallback0" {
		t.Errorf("success = %q", env.Success)
	}
	if env.Error != "registerForTimelineUpdates_errorCallback0" {
		t.Errorf("error = %q", env.Error)
	}
}

func TestNewEnvelopeKeepsNamedSlots(t *testing.T) {
	r := callback.NewRegistry()

	env, err := NewEnvelope(r, "loadMediaAssetURL", []any{"home"},
		callback.Named("onHomeLoaded"), callback.Callback{})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	want := Envelope{FunctionName: "loadMediaAssetURL", Success: "onHomeLoaded", Args: []any{"home"}}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestNewEnvelopeRejectsEmptyFunctionName(t *testing.T) {
	r := callback.NewRegistry()
	_, err := NewEnvelope(r, "", nil, callback.Of(func(string) {}), callback.Callback{})
	if !errors.Is(err, ErrEmptyFunctionName) {
		t.Errorf("err = %v, want ErrEmptyFunctionName", err)
	}
	if len(r.List()) != 0 {
		t.Errorf("rejected call registered slots: %v", r.List())
	}
}

func BenchmarkEncode(b *testing.B) {
	env := Envelope{FunctionName: "registerForTimelineUpdates", Success: "s0", Error: "e0", Args: []any{1000, true}}
	for i := 0; i < b.N; i++ {
		if _, err := Encode(env); err != nil {
			b.Fatal(err)
		}
	}
}
