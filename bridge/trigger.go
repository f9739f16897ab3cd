package bridge

import (
	"log/slog"
	"sync"
)

// Surface is where a navigation becomes observable to the host. Attaching an
// element with a source makes the host see the navigation attempt.
type Surface interface {
	Attach(src string) (Element, error)
}

// Element is a throwaway navigable element created by a Surface.
type Element interface {
	Detach()
}

// SurfaceFunc adapts a function to a Surface whose elements need no cleanup.
type SurfaceFunc func(src string) error

func (f SurfaceFunc) Attach(src string) (Element, error) {
	if err := f(src); err != nil {
		return nil, err
	}
	return noopElement{}, nil
}

type noopElement struct{}

func (noopElement) Detach() {}

// Trigger makes the host observe URLs by attaching and immediately detaching
// an element on a Surface.
type Trigger struct {
	surface Surface
	logger  *slog.Logger
}

func NewTrigger(surface Surface, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{surface: surface, logger: logger}
}

// Dispatch never reports failure: the host is assumed to intercept the
// scheme. A surface error is logged and the call is lost.
func (t *Trigger) Dispatch(url string) {
	el, err := t.surface.Attach(url)
	if err != nil {
		t.logger.Debug("navigation dropped", "error", err)
		return
	}
	el.Detach()
}

// Document is an in-memory Surface. Each attached frame is reported to the
// observer before Attach returns.
type Document struct {
	observe func(src string)

	mu     sync.Mutex
	frames map[*Frame]struct{}
	seen   int
}

// Frame is an element attached to a Document.
type Frame struct {
	Src string
	doc *Document
}

func NewDocument(observe func(src string)) *Document {
	return &Document{
		observe: observe,
		frames:  make(map[*Frame]struct{}),
	}
}

func (d *Document) Attach(src string) (Element, error) {
	f := &Frame{Src: src, doc: d}

	d.mu.Lock()
	d.frames[f] = struct{}{}
	d.seen++
	d.mu.Unlock()

	if d.observe != nil {
		d.observe(src)
	}
	return f, nil
}

func (f *Frame) Detach() {
	f.doc.mu.Lock()
	delete(f.doc.frames, f)
	f.doc.mu.Unlock()
}

// Attached returns the number of frames currently attached.
func (d *Document) Attached() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

// Observed returns the number of navigations the document has seen.
func (d *Document) Observed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen
}
