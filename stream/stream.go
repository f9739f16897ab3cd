// Package stream carries the bridge over a pair of byte streams.
//
// The page writes each navigation as a frame, \x00NAV:<url>\x00, and reads
// one JSON invocation per line from the host:
//
//	{"callback":"registerForTimelineUpdates_successCallback0","reply":"{\"result\":\"ok\"}"}
//
// This is how a page compiled to WASI talks to the hostview runner: frames
// go to stderr and invocations arrive on stdin. Bytes outside frames pass
// through untouched.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/caffeineduck/navbridge/bridge"
	"github.com/caffeineduck/navbridge/callback"
)

const (
	framePrefix = "\x00NAV:"
	frameSuffix = "\x00"

	maxLineSize = 1 << 20
)

// Surface writes navigation frames to w.
type Surface struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSurface(w io.Writer) *Surface {
	return &Surface{w: w}
}

func (s *Surface) Attach(src string) (bridge.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, framePrefix+src+frameSuffix); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	return frame{}, nil
}

type frame struct{}

func (frame) Detach() {}

// Serve reads invocations from r and runs them through inv until r is
// exhausted or ctx is done. Invocations of unknown slots are logged and
// skipped.
func Serve(ctx context.Context, r io.Reader, inv bridge.Invoker, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var in bridge.Invocation
		if err := json.Unmarshal(line, &in); err != nil {
			logger.Warn("invalid invocation", "error", err)
			continue
		}
		if in.Callback == "" {
			continue
		}
		if err := inv.Invoke(in.Callback, in.Reply); err != nil {
			if errors.Is(err, callback.ErrUnknownSlot) {
				continue
			}
			return fmt.Errorf("invoke %s: %w", in.Callback, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read invocations: %w", err)
	}
	return nil
}

// Parser is the host side of Surface: an io.Writer that extracts navigation
// frames and keeps everything else as passthrough output.
type Parser struct {
	onNavigate func(url string)

	mu          sync.Mutex
	buf         bytes.Buffer
	passthrough bytes.Buffer
}

func NewParser(onNavigate func(url string)) *Parser {
	return &Parser{onNavigate: onNavigate}
}

func (p *Parser) Write(data []byte) (int, error) {
	p.mu.Lock()
	p.buf.Write(data)

	var urls []string
	for {
		content := p.buf.String()
		startIdx := strings.Index(content, framePrefix)
		if startIdx == -1 {
			// Hold back a possible partial prefix at the end of the buffer.
			keep := partialPrefix(content)
			p.passthrough.WriteString(content[:len(content)-keep])
			p.buf.Reset()
			p.buf.WriteString(content[len(content)-keep:])
			break
		}

		p.passthrough.WriteString(content[:startIdx])

		body := content[startIdx+len(framePrefix):]
		endIdx := strings.Index(body, frameSuffix)
		if endIdx == -1 {
			p.buf.Reset()
			p.buf.WriteString(content[startIdx:])
			break
		}

		urls = append(urls, body[:endIdx])
		p.buf.Reset()
		p.buf.WriteString(body[endIdx+len(frameSuffix):])
	}
	p.mu.Unlock()

	for _, u := range urls {
		p.onNavigate(u)
	}
	return len(data), nil
}

// Passthrough returns the bytes written outside navigation frames.
func (p *Parser) Passthrough() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passthrough.String()
}

func partialPrefix(content string) int {
	for n := len(framePrefix) - 1; n > 0; n-- {
		if strings.HasSuffix(content, framePrefix[:n]) {
			return n
		}
	}
	return 0
}

// InvocationWriter is the host side of Serve: it writes one invocation per
// line to w.
type InvocationWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewInvocationWriter(w io.Writer) *InvocationWriter {
	return &InvocationWriter{w: w}
}

func (w *InvocationWriter) Invoke(slot, reply string) error {
	data, err := json.Marshal(bridge.Invocation{Callback: slot, Reply: reply})
	if err != nil {
		return fmt.Errorf("encode invocation: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}
