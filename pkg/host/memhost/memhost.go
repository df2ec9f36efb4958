// Package memhost is an in-memory host project. It implements the host
// primitives with the same parameter names and routing rules as the real
// DAW, and runs them all on a single main-loop goroutine.
package memhost

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/james-see/reasend/pkg/host"
)

var ErrClosed = errors.New("memhost: host is closed")

// Option configures a Host
type Option func(*Host)

// WithLogger sets the logger used for mutations
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithExtension installs or removes the extension primitives
func WithExtension(enabled bool) Option {
	return func(h *Host) { h.extension = enabled }
}

// WithQueueSize sets the buffer of the main-loop queue
func WithQueueSize(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.ops = make(chan op, n)
		}
	}
}

type op struct {
	fn   func() error
	done chan error
}

type insideKey struct{}

var (
	_ host.Host      = (*Host)(nil)
	_ host.Extension = (*Host)(nil)
	_ host.Executor  = (*Host)(nil)
	_ host.Browser   = (*Host)(nil)
)

// Host is an in-memory project. Project state is only touched from the
// main loop; every exported method marshals onto it.
type Host struct {
	log       *slog.Logger
	ops       chan op
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	extension bool

	tracks  []*track
	byID    map[string]*track
	byPtr   map[uint64]*track
	nextPtr uint64
}

// New creates a Host and starts its main loop. Call Close when done.
func New(opts ...Option) *Host {
	h := &Host{
		log:     slog.New(slog.DiscardHandler),
		ops:     make(chan op, 32),
		stop:    make(chan struct{}),
		byID:    make(map[string]*track),
		byPtr:   make(map[uint64]*track),
		nextPtr: 0x10000,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.wg.Add(1)
	go h.loop()
	return h
}

// Close stops the main loop. Pending calls fail with ErrClosed.
func (h *Host) Close() error {
	h.stopOnce.Do(func() { close(h.stop) })
	h.wg.Wait()
	return nil
}

func (h *Host) loop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return
		case o := <-h.ops:
			o.done <- o.fn()
		}
	}
}

func (h *Host) isInside(ctx context.Context) bool {
	owner, _ := ctx.Value(insideKey{}).(*Host)
	return owner == h
}

// exec runs fn on the main loop, or directly when ctx already is inside it.
// ctx only bounds the wait for a slot in the queue: once fn is queued the
// loop will run it, so exec reports its result rather than ctx.Err().
func (h *Host) exec(ctx context.Context, fn func() error) error {
	if h.isInside(ctx) {
		return fn()
	}

	o := op{fn: fn, done: make(chan error, 1)}
	select {
	case h.ops <- o:
	case <-h.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.done:
		return err
	case <-h.stop:
		// the loop may still finish fn before it exits
		h.wg.Wait()
		select {
		case err := <-o.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Inside runs fn on the main loop. Host calls made with the context fn
// receives run immediately, so the whole of fn is atomic with respect to
// other callers.
func (h *Host) Inside(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.isInside(ctx) {
		return fn(ctx)
	}
	return h.exec(ctx, func() error {
		return fn(context.WithValue(ctx, insideKey{}, h))
	})
}

// SetExtension installs or removes the extension at runtime
func (h *Host) SetExtension(ctx context.Context, enabled bool) error {
	return h.exec(ctx, func() error {
		h.extension = enabled
		h.log.Info("extension toggled", "enabled", enabled)
		return nil
	})
}

// ExtensionAvailable reports whether the extension primitives are installed
func (h *Host) ExtensionAvailable(ctx context.Context) bool {
	var ok bool
	_ = h.exec(ctx, func() error {
		ok = h.extension
		return nil
	})
	return ok
}
