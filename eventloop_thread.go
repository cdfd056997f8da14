package reactor

import "sync"

// ThreadInitCallback runs once on a newly started EventLoopThread's
// goroutine, before the loop starts polling (spec.md §4.4).
type ThreadInitCallback func(loop *EventLoop)

// EventLoopThread owns one goroutine running exactly one EventLoop,
// publishing the loop pointer back to StartLoop's caller once construction
// completes (spec.md §4.4, grounded on
// original_source/event_loop_thread.hpp's mutex+condvar publish sequence).
type EventLoopThread struct {
	mu       sync.Mutex
	cond     *sync.Cond
	loop     *EventLoop
	initFunc ThreadInitCallback
}

// NewEventLoopThread constructs a thread wrapper; the goroutine itself
// isn't started until StartLoop is called.
func NewEventLoopThread(initFunc ThreadInitCallback) *EventLoopThread {
	t := &EventLoopThread{initFunc: initFunc}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop spawns the goroutine, blocks until its EventLoop has been
// constructed, and returns that loop for the pool to route work to.
func (t *EventLoopThread) StartLoop() *EventLoop {
	go t.runLoop()

	t.mu.Lock()
	for t.loop == nil {
		t.cond.Wait()
	}
	loop := t.loop
	t.mu.Unlock()
	return loop
}

func (t *EventLoopThread) runLoop() {
	loop, err := NewEventLoop()
	if err != nil {
		panic(err)
	}

	if t.initFunc != nil {
		t.initFunc(loop)
	}

	t.mu.Lock()
	t.loop = loop
	t.cond.Signal()
	t.mu.Unlock()

	loop.Loop()
}
