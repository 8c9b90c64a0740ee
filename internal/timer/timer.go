// Package timer provides the cancellable countdown and interval primitives
// used for periodic sampling and delayed auto-reset. At most one interval and
// one delay are live at a time; starting a new one of a kind cancels the old.
// Callbacks are delivered through the owner's post function so they run on the
// same logical thread as the state machine.
package timer

import (
	"sync"
	"time"
)

// Handle identifies a live timer. The zero Handle is never issued.
type Handle uint64

// Scheduler is the contract the orchestrator programs against.
type Scheduler interface {
	StartInterval(d time.Duration, fn func()) Handle
	StartDelay(d time.Duration, fn func()) Handle
	// Cancel stops the identified timer. Cancelling an already-fired or
	// already-cancelled handle is a no-op.
	Cancel(h Handle)
	// Stop cancels everything and releases resources.
	Stop()
}

type intervalSlot struct {
	h      Handle
	ticker *time.Ticker
	done   chan struct{}
}

type delaySlot struct {
	h Handle
	t *time.Timer
}

// Real is the wall-clock Scheduler.
type Real struct {
	post func(func())

	mu       sync.Mutex
	seq      Handle
	interval *intervalSlot
	delay    *delaySlot
	stopped  bool
}

func New(post func(func())) *Real {
	if post == nil {
		post = func(f func()) { f() }
	}
	return &Real{post: post}
}

func (s *Real) StartInterval(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}
	s.cancelIntervalLocked()

	s.seq++
	h := s.seq
	slot := &intervalSlot{h: h, ticker: time.NewTicker(d), done: make(chan struct{})}
	s.interval = slot

	go func() {
		for {
			select {
			case <-slot.done:
				return
			case <-slot.ticker.C:
				if s.liveInterval(h) {
					s.post(fn)
				}
			}
		}
	}()
	return h
}

func (s *Real) StartDelay(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}
	s.cancelDelayLocked()

	s.seq++
	h := s.seq
	slot := &delaySlot{h: h}
	slot.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		live := s.delay != nil && s.delay.h == h
		if live {
			s.delay = nil
		}
		s.mu.Unlock()
		if live {
			s.post(fn)
		}
	})
	s.delay = slot
	return h
}

func (s *Real) Cancel(h Handle) {
	if h == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval != nil && s.interval.h == h {
		s.cancelIntervalLocked()
	}
	if s.delay != nil && s.delay.h == h {
		s.cancelDelayLocked()
	}
}

func (s *Real) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelIntervalLocked()
	s.cancelDelayLocked()
}

func (s *Real) liveInterval(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval != nil && s.interval.h == h
}

func (s *Real) cancelIntervalLocked() {
	if s.interval == nil {
		return
	}
	s.interval.ticker.Stop()
	close(s.interval.done)
	s.interval = nil
}

func (s *Real) cancelDelayLocked() {
	if s.delay == nil {
		return
	}
	s.delay.t.Stop()
	s.delay = nil
}
