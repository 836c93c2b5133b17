package eventloop

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Loop runs posted tasks one at a time on a single goroutine.
//
// Work is grouped into turns. A turn runs every task that was posted before
// the turn began, in posting order, and then every task deferred while those
// tasks ran. Tasks posted during a turn run in the next turn; tasks deferred
// by a deferred task run at the end of the next turn.
//
// Thread-safe: Post, Defer and Stop may be called from any goroutine.
type Loop struct {
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	tasks    []func()
	deferred []func()
	mu       sync.Mutex
	wg       sync.WaitGroup
	owner    atomic.Uint64
	started  bool
}

// New creates a stopped loop. Call Start to run it on its own goroutine, or
// call Turn directly to drive it from the current goroutine.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Loop{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Post queues fn for the next turn. Tasks posted after Stop are dropped.
func (l *Loop) Post(fn func()) {
	if l.Stopped() {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// Defer queues fn to run once the tasks of the current turn have completed.
// Called outside a turn, fn runs at the end of the next turn.
func (l *Loop) Defer(fn func()) {
	if l.Stopped() {
		return
	}
	l.mu.Lock()
	l.deferred = append(l.deferred, fn)
	l.mu.Unlock()
	l.signal()
}

// Turn runs one turn synchronously and reports whether any task ran.
// It must not be called while the loop goroutine is running.
func (l *Loop) Turn() bool {
	l.owner.Store(goid())
	defer l.owner.Store(0)

	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, fn := range tasks {
		if l.Stopped() {
			return true
		}
		l.run(fn)
	}

	l.mu.Lock()
	deferred := l.deferred
	l.deferred = nil
	l.mu.Unlock()

	for _, fn := range deferred {
		if l.Stopped() {
			return true
		}
		l.run(fn)
	}

	return len(tasks)+len(deferred) > 0
}

// Start runs the loop on a new goroutine until Stop is called.
// Calling Start more than once has no effect.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-l.ctx.Done():
				return
			case <-l.wake:
				for l.Turn() {
				}
			}
		}
	}()
}

// Stop ends the loop and drops queued tasks. A task that is running when
// Stop is called completes; nothing starts afterwards. Stop does not wait
// for the loop goroutine, so it is safe to call from inside a task.
func (l *Loop) Stop() {
	l.cancel()
	l.mu.Lock()
	l.tasks = nil
	l.deferred = nil
	l.mu.Unlock()
}

// Wait blocks until the loop goroutine started by Start has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	return l.ctx.Err() != nil
}

// InLoop reports whether the caller is a task of the turn in progress.
func (l *Loop) InLoop() bool {
	id := l.owner.Load()
	return id != 0 && id == goid()
}

// Done is closed when the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.ctx.Done()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run executes fn and keeps a panicking task from killing the loop goroutine.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// goid returns the id of the calling goroutine, parsed from the
// "goroutine N [running]:" header of its stack trace.
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
