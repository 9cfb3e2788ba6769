package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wizmarket/wizapp/internal/protocol"
)

var ErrUnknownType = errors.New("router: unknown message type")

// HandlerFunc handles one decoded Web→Native message.
type HandlerFunc func(ctx context.Context, msg protocol.Message) error

// OpenFunc receives legacy "open::<url>" commands.
type OpenFunc func(ctx context.Context, url string) error

type route struct {
	fn    HandlerFunc
	async bool
}

// Router decodes inbound strings and dispatches them to exactly one handler
// per type. Handler failures are logged and never reach the caller.
//
// Inbound messages and queued native callbacks run one at a time, in
// arrival order, on a single loop goroutine. Handlers registered with
// HandleAsync are decoded and validated on the loop and then run on their
// own tracked goroutine.
type Router struct {
	handlers *xsync.Map[string, route]
	open     OpenFunc
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	queue    []func(context.Context)
	closed   bool
	wake     chan struct{}
	loopDone chan struct{}
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		handlers: xsync.NewMap[string, route](),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	go r.loop()
	return r
}

// Handle registers fn for msgType, replacing any previous handler. fn runs
// on the inbound loop, so it sees the effects of every earlier message.
func (r *Router) Handle(msgType string, fn HandlerFunc) {
	r.handlers.Store(msgType, route{fn: fn})
}

// HandleAsync registers fn for msgType to run off the inbound loop. Use it
// for handlers that wait on platform collaborators and touch no ordered
// state.
func (r *Router) HandleAsync(msgType string, fn HandlerFunc) {
	r.handlers.Store(msgType, route{fn: fn, async: true})
}

// HandleOpen registers the side effect for the legacy open:: form.
func (r *Router) HandleOpen(fn OpenFunc) {
	r.open = fn
}

func (r *Router) Types() []string {
	types := make([]string, 0, r.handlers.Size())
	r.handlers.Range(func(k string, _ route) bool {
		types = append(types, k)
		return true
	})
	return types
}

// Route decodes raw and runs its handler on the calling goroutine, or
// starts it with Go when it was registered with HandleAsync. It reports
// whether a structured handler was invoked.
func (r *Router) Route(ctx context.Context, raw string) bool {
	in, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Warn("dropping inbound message", "err", err)
		return false
	}

	if in.IsLegacyOpen() {
		r.openURL(ctx, in.OpenURL)
		return false
	}

	rt, ok := r.handlers.Load(in.Type)
	if !ok {
		r.logger.Warn("unknown inbound message", "type", in.Type, "err", ErrUnknownType)
		return false
	}

	if err := protocol.Validate(in.Message); err != nil {
		r.logger.Warn("dropping inbound message", "type", in.Type, "err", err)
		return false
	}

	r.logger.Debug("from web", "type", in.Type)
	if rt.async {
		msg := in.Message
		r.Go(in.Type, func(ctx context.Context) error {
			return rt.fn(ctx, msg)
		})
		return true
	}
	if err := r.invoke(ctx, rt.fn, in.Message); err != nil {
		r.logger.Error("handler failed", "type", in.Type, "err", err)
	}
	return true
}

// Dispatch queues raw for the inbound loop and returns immediately.
func (r *Router) Dispatch(raw string) {
	if !r.enqueue(func(ctx context.Context) { r.Route(ctx, raw) }) {
		r.logger.Warn("router closed, dropping inbound message")
	}
}

// Post queues a native callback on the inbound loop behind every message
// already dispatched.
func (r *Router) Post(name string, fn func(ctx context.Context) error) {
	ok := r.enqueue(func(ctx context.Context) {
		if err := r.invoke(ctx, func(ctx context.Context, _ protocol.Message) error {
			return fn(ctx)
		}, protocol.Message{Type: name}); err != nil {
			r.logger.Error("queued task failed", "task", name, "err", err)
		}
	})
	if !ok {
		r.logger.Warn("router closed, dropping task", "task", name)
	}
}

// Go runs fn on a tracked goroutine tied to the router's lifetime. Native
// callbacks that need no ordering use it.
func (r *Router) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Debug("router closed, task dropped", "task", name)
		return
	}
	r.wg.Go(func() {
		if err := r.invoke(r.ctx, func(ctx context.Context, _ protocol.Message) error {
			return fn(ctx)
		}, protocol.Message{Type: name}); err != nil {
			r.logger.Error("background task failed", "task", name, "err", err)
		}
	})
}

// Wait blocks until the queue is drained and all handlers have returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Close drops queued work, cancels in-flight handlers and waits for them.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.closed = true
	dropped := len(r.queue)
	r.queue = nil
	r.mu.Unlock()

	for range dropped {
		r.wg.Done()
	}
	if dropped > 0 {
		r.logger.Warn("router closed with queued messages", "dropped", dropped)
	}
	r.cancel()
	r.signal()
	<-r.loopDone
	r.wg.Wait()
}

func (r *Router) enqueue(fn func(context.Context)) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	r.signal()
	return true
}

func (r *Router) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Router) loop() {
	defer close(r.loopDone)
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			<-r.wake
			continue
		}
		fn := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		fn(r.ctx)
		r.wg.Done()
	}
}

func (r *Router) invoke(ctx context.Context, fn HandlerFunc, msg protocol.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s handler: %v\n%s", msg.Type, p, debug.Stack())
		}
	}()
	return fn(ctx, msg)
}

func (r *Router) openURL(ctx context.Context, url string) {
	if r.open == nil {
		r.logger.Warn("legacy open ignored, no opener", "url", url)
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("legacy open panicked", "url", url, "panic", p)
		}
	}()
	if err := r.open(ctx, url); err != nil {
		r.logger.Warn("legacy open failed", "url", url, "err", err)
	}
}
