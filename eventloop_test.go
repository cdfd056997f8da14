package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventLoopRunInLoopSameGoroutine(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	var ran bool
	loop.RunInLoop(func() { ran = true })
	require.True(t, ran, "RunInLoop on the owning goroutine must run inline")
}

// startBackgroundLoop starts an EventLoop on its own goroutine via
// EventLoopThread, whose StartLoop constructs the EventLoop and blocks in
// Loop() on the same goroutine (spec.md §4.1) — the only safe way to hand
// a running loop to a different goroutine such as a test body.
func startBackgroundLoop(t *testing.T) *EventLoop {
	t.Helper()
	th := NewEventLoopThread(nil)
	return th.StartLoop()
}

func TestEventLoopQueueInLoopCrossGoroutine(t *testing.T) {
	loop := startBackgroundLoop(t)

	var n int32
	loop.QueueInLoop(func() { atomic.AddInt32(&n, 1) })
	loop.QueueInLoop(func() { atomic.AddInt32(&n, 1) })

	require.Eventually(t, func() bool { return atomic.LoadInt32(&n) == 2 }, time.Second, time.Millisecond)

	loop.Quit()
}

func TestEventLoopQuitFromAnotherGoroutine(t *testing.T) {
	loop := startBackgroundLoop(t)

	loop.Quit()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&loop.looping) == 0 }, time.Second, time.Millisecond)
}

func TestTwoLoopsOnSameGoroutineRejected(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		loop1, err := NewEventLoop()
		if err != nil {
			done <- err
			return
		}
		defer loop1.Quit()
		_, err = NewEventLoop()
		done <- err
	}()

	err := <-done
	require.ErrorIs(t, err, ErrTwoLoopsOneThread)
}

func TestEventLoopIterationAdvances(t *testing.T) {
	loop := startBackgroundLoop(t)

	// An idle loop blocks in poll for up to pollTimeoutMs; queueing a task
	// wakes it so one poll cycle completes.
	loop.QueueInLoop(func() {})

	require.Eventually(t, func() bool { return loop.Iteration() > 0 }, 2*time.Second, 5*time.Millisecond)

	loop.Quit()
}
