// Package looptest provides a manually driven scheduler for tests.
package looptest

import (
	"sync"
	"time"

	"github.com/1ureka/matchlink/internal/loop"
)

// Timer is a timer created by Scheduler.
type Timer struct {
	Delay time.Duration

	s       *Scheduler
	fn      func()
	stopped bool
	fired   bool
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *Timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Scheduler records timers instead of running them. Fire runs them through
// the supplied executor, so callbacks still land on the loop.
type Scheduler struct {
	mu     sync.Mutex
	exec   loop.Executor
	timers []*Timer
}

// NewScheduler creates a Scheduler that posts fired callbacks onto exec.
func NewScheduler(exec loop.Executor) *Scheduler {
	return &Scheduler{exec: exec}
}

// AfterFunc implements loop.Scheduler.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) loop.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Timer{Delay: d, s: s, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Pending returns timers that have neither fired nor been stopped.
func (s *Scheduler) Pending() []*Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Timer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// Created returns the number of timers ever scheduled.
func (s *Scheduler) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// FireAll fires every pending timer.
func (s *Scheduler) FireAll() {
	for _, t := range s.Pending() {
		s.mu.Lock()
		if t.stopped || t.fired {
			s.mu.Unlock()
			continue
		}
		t.fired = true
		s.mu.Unlock()
		s.exec.Post(t.fn)
	}
}
