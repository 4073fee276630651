// Package loop provides the single cooperative execution context.
//
// All display state (controller, scheduler, poller, ad cycle) is mutated only
// from closures run by Loop.Run. Blocking I/O goes through Go, which runs the
// work on its own goroutine under a timeout and posts the completion back.
package loop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "clubkiosk/pkg/logx"
)

// Work performs blocking I/O and returns the completion to run on the loop.
// A nil completion is allowed.
type Work func(ctx context.Context) (done func())

// Dispatcher starts off-loop work. Loop, Inline and Deferred implement it.
type Dispatcher interface {
	Go(name string, work Work)
}

// DefaultTimeout bounds every Work call when none is configured.
const DefaultTimeout = 10 * time.Second

type Loop struct {
	log     logx.Logger
	queue   chan func()
	timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool

	wg        sync.WaitGroup
	panics    atomic.Uint64
	inflight  atomic.Int64
	processed atomic.Uint64
}

// New returns a Loop with a bounded queue. Posts made before Run are buffered.
func New(log logx.Logger, queueSize int, timeout time.Duration) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		log:     log.With(logx.String("comp", "loop")),
		queue:   make(chan func(), queueSize),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run executes posted closures until ctx is done. In-flight Work is cancelled
// and awaited before Run returns; their completions are discarded.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("loop: already started")
	}

	defer func() {
		close(l.done)
		l.cancel()
		l.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error("loop task panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	l.processed.Add(1)
	fn()
}

// Go runs work on a new goroutine with the configured timeout and posts the
// returned completion onto the loop.
func (l *Loop) Go(name string, work Work) {
	select {
	case <-l.done:
		return
	default:
	}
	l.wg.Add(1)
	l.inflight.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inflight.Add(-1)

		ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
		defer cancel()

		done := l.safeWork(name, ctx, work)
		if done != nil {
			l.Post(done)
		}
	}()
}

func (l *Loop) safeWork(name string, ctx context.Context, work Work) (done func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error("loop work panic", logx.String("work", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			done = nil
		}
	}()
	return work(ctx)
}

// Stats is a point-in-time view of loop counters.
type Stats struct {
	Queued    int    `json:"queued"`
	InFlight  int64  `json:"in_flight"`
	Processed uint64 `json:"processed"`
	Panics    uint64 `json:"panics"`
}

func (l *Loop) Stats() Stats {
	return Stats{
		Queued:    len(l.queue),
		InFlight:  l.inflight.Load(),
		Processed: l.processed.Load(),
		Panics:    l.panics.Load(),
	}
}

// Call posts fn and waits for it to run. It returns ctx.Err() or an error if
// the loop stopped first.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() { defer close(ran); fn() }) {
		return fmt.Errorf("loop: stopped")
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		return fmt.Errorf("loop: stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}
