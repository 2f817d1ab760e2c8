// Package eventloop runs closures one at a time on a dedicated goroutine.
//
// A Loop is the single logical thread of a session: HTTP commands, timer
// callbacks and completions of background calls are all posted to it, so the
// state they touch never needs a lock.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("event loop closed")

type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake   chan struct{}
	stop   chan struct{}
	exited chan struct{}
	wg     sync.WaitGroup

	logger *zap.Logger
}

// New starts a loop. Close must be called to release its goroutine.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger,
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	defer close(l.exited)

	for {
		select {
		case <-l.wake:
			for {
				fn, ok := l.pop()
				if !ok {
					break
				}
				l.exec(fn)
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// exec keeps a panicking task from taking the session down with it.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Post queues fn to run after every task posted before it. It never blocks
// and reports false when the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish. If ctx ends first Do
// returns ctx.Err() and fn may still run later.
// Calling Do from a task running on the same loop deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.exited:
		// the loop goroutine is gone, so fn either finished or never ran
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// AfterFunc posts fn to the loop once d has elapsed. The returned stop
// function cancels the timer and reports whether it stopped it before it
// fired, like context.AfterFunc.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	t := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return t.Stop
}

// Close stops the loop, drops queued tasks and waits for the running one.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	close(l.stop)
	l.wg.Wait()
	return nil
}
