// Package loop provides the single execution thread every session component
// runs on. Socket reads, timers and WebRTC callbacks never touch component
// state directly; they post a closure and the loop runs it to completion
// before picking up the next one.
package loop

import (
	"context"
	"sync"
	"time"
)

// Executor accepts work to be run on the loop.
type Executor interface {
	Post(fn func())
}

// Timer is a pending delayed callback.
type Timer interface {
	Stop() bool
}

// Scheduler creates delayed callbacks that fire on the loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is an unbounded FIFO of closures drained by a single goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// New creates an idle loop. Call Run to start draining it.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. It never blocks, so it is safe to call from callbacks
// owned by other libraries (pion, the socket reader) and from the loop itself.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.drain()

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Do posts fn and waits for it to finish. Must not be called from the loop
// goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc schedules fn to be posted onto the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}
