// Package hostview runs a page compiled to WASI as if it were embedded in a
// web view: the sandboxed module can only reach the host through navigation
// frames written to stderr, and the host answers by writing callback
// invocations to its stdin.
//
//	registry := native.NewRegistry()
//	native.NewTimelineFeeder(time.Second).Install(registry)
//
//	runner, err := hostview.New(native.NewProcessor(registry))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Close()
//
//	result := runner.Run(ctx, pageWasm, hostview.WithTimeout(10*time.Second))
package hostview

//go:generate go run ../internal/tools/buildpage testdata/guest.go testdata/guest.wasm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/navbridge/native"
	"github.com/caffeineduck/navbridge/stream"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

var ErrClosed = errors.New("runner closed")

// Result holds the output and metadata of a page run.
type Result struct {
	Output      string
	Diagnostics string
	Navigations int
	Duration    time.Duration
	Error       error
}

// Runner manages the wazero runtime and compiled page modules.
type Runner struct {
	runtime   wazero.Runtime
	cache     wazero.CompilationCache
	compiled  map[[sha256.Size]byte]wazero.CompiledModule
	processor *native.Processor
	logger    *slog.Logger
	mu        sync.RWMutex
	closed    bool
}

// New creates a Runner whose pages are answered by processor.
func New(processor *native.Processor, opts ...RunnerOption) (*Runner, error) {
	cfg := defaultRunnerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Runner{
		runtime:   rt,
		cache:     cache,
		compiled:  make(map[[sha256.Size]byte]wazero.CompiledModule),
		processor: processor,
		logger:    cfg.logger,
	}, nil
}

// Run executes the page until it exits, ctx is done or the timeout passes.
// Every navigation the page makes is processed concurrently; replies are
// written to the page's stdin.
func (r *Runner) Run(ctx context.Context, wasm []byte, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	compiled, err := r.getCompiled(ctx, wasm)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	// Native work started by the page ends with the page.
	session, endSession := context.WithCancel(ctx)
	defer endSession()

	var stdout bytes.Buffer
	stdinReader, stdinWriter := io.Pipe()
	invoker := stream.NewInvocationWriter(stdinWriter)

	var (
		wg          sync.WaitGroup
		navMu       sync.Mutex
		navigations int
	)
	parser := stream.NewParser(func(url string) {
		navMu.Lock()
		navigations++
		navMu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.processor.Process(session, url, invoker); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				r.logger.Warn("navigation not processed", "error", err)
			}
		}()
	})

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(parser).
		WithStdin(stdinReader).
		WithArgs(cfg.args...).
		WithName("")
	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	errCh := make(chan error, 1)
	go func() {
		mod, err := r.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if mod != nil {
			mod.Close(ctx)
		}
		stdinWriter.Close()
		errCh <- err
	}()

	err = <-errCh
	endSession()
	wg.Wait()

	navMu.Lock()
	result := Result{
		Output:      stdout.String(),
		Diagnostics: parser.Passthrough(),
		Navigations: navigations,
		Duration:    time.Since(start),
	}
	navMu.Unlock()

	if err != nil {
		var exitErr *sys.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			result.Error = fmt.Errorf("timeout after %v", cfg.timeout)
		case errors.As(err, &exitErr) && exitErr.ExitCode() == 0:
		default:
			result.Error = fmt.Errorf("page failed: %w", err)
		}
	}

	return result
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (r *Runner) getCompiled(ctx context.Context, wasm []byte) (wazero.CompiledModule, error) {
	key := sha256.Sum256(wasm)

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrClosed
	}
	if compiled, ok := r.compiled[key]; ok {
		r.mu.RUnlock()
		return compiled, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if compiled, ok := r.compiled[key]; ok {
		return compiled, nil
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile page: %w", err)
	}

	r.compiled[key] = compiled
	return compiled, nil
}

// Close releases all resources held by the Runner.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()

	var errs []error
	if err := r.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cache != nil {
		if err := r.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "navbridge")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "navbridge")
	}
	return filepath.Join(os.TempDir(), "navbridge-cache")
}
