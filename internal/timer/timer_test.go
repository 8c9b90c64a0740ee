package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayFires(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	fired := make(chan struct{})
	s.StartDelay(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("delay never fired")
	}
}

func TestCancelDelayIsNoOpAfterwards(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var n int32
	h := s.StartDelay(20*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	s.Cancel(h)
	s.Cancel(h) // second cancel must be a no-op
	time.Sleep(80 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&n))
}

func TestDelayLastWriterWins(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var first, second int32
	s.StartDelay(20*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.StartDelay(20*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&first), "superseded delay must not fire")
	require.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestIntervalLastWriterWins(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var first, second int32
	s.StartInterval(10*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.StartInterval(10*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&first))
	require.Positive(t, atomic.LoadInt32(&second))
}

func TestIntervalStopsOnCancel(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var n int32
	h := s.StartInterval(10*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	time.Sleep(55 * time.Millisecond)
	s.Cancel(h)
	seen := atomic.LoadInt32(&n)
	require.Positive(t, seen)

	time.Sleep(60 * time.Millisecond)
	require.LessOrEqual(t, atomic.LoadInt32(&n), seen+1, "at most one in-flight tick after cancel")
}

func TestCallbacksGoThroughPost(t *testing.T) {
	posted := make(chan func(), 8)
	s := New(func(f func()) { posted <- f })
	defer s.Stop()

	s.StartDelay(10*time.Millisecond, func() {})
	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatal("callback was not posted")
	}
}

func TestStopPreventsNewTimers(t *testing.T) {
	s := New(nil)
	s.Stop()
	require.Equal(t, Handle(0), s.StartDelay(time.Millisecond, func() {}))
	require.Equal(t, Handle(0), s.StartInterval(time.Millisecond, func() {}))
}
