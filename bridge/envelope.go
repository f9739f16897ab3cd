package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/caffeineduck/navbridge/callback"
)

// Scheme is the private URL scheme the host intercepts.
const Scheme = "js2ios://"

var (
	ErrEmptyFunctionName = errors.New("function name is required")
	ErrNotNavigation     = errors.New("not a bridge navigation")
)

// Envelope describes one native call. It is built per call, serialized and
// then discarded.
type Envelope struct {
	FunctionName string `json:"functionname"`
	Success      string `json:"success,omitempty"`
	Error        string `json:"error,omitempty"`
	Args         []any  `json:"args,omitempty"`
}

// Reply is the payload a host passes to a success or error slot. Hosts may
// send more fields; the bridge passes the raw string through untouched.
type Reply struct {
	Result  any    `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// Invocation is a host request to run a slot, used by transports that carry
// replies as messages rather than direct calls.
type Invocation struct {
	Callback string `json:"callback"`
	Reply    string `json:"reply"`
}

// EncodeError reports an envelope that could not be serialized.
type EncodeError struct {
	FunctionName string
	Err          error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.FunctionName, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// NewEnvelope resolves the continuations through registry under the purposes
// functionName+"_successCallback" and functionName+"_errorCallback".
func NewEnvelope(registry *callback.Registry, functionName string, args []any, onSuccess, onError callback.Callback) (Envelope, error) {
	if functionName == "" {
		return Envelope{}, ErrEmptyFunctionName
	}
	env := Envelope{FunctionName: functionName, Args: args}
	if !onSuccess.IsZero() {
		env.Success = registry.Resolve(functionName+"_successCallback", onSuccess)
	}
	if !onError.IsZero() {
		env.Error = registry.Resolve(functionName+"_errorCallback", onError)
	}
	return env, nil
}

// Encode serializes env into a navigation URL under Scheme.
func Encode(env Envelope) (string, error) {
	if env.FunctionName == "" {
		return "", ErrEmptyFunctionName
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", &EncodeError{FunctionName: env.FunctionName, Err: err}
	}
	return Scheme + string(data), nil
}

// Decode parses a navigation URL produced by Encode. Web views may hand the
// host a percent-escaped URL; both forms are accepted.
func Decode(rawURL string) (Envelope, error) {
	payload, ok := strings.CutPrefix(rawURL, Scheme)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %.32q", ErrNotNavigation, rawURL)
	}
	if !strings.HasPrefix(payload, "{") {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("unescape payload: %w", err)
		}
		payload = unescaped
	}

	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.FunctionName == "" {
		return Envelope{}, ErrEmptyFunctionName
	}
	return env, nil
}
