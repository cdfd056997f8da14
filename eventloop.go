package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/kevwan/reactor/internal/goid"
	"github.com/kevwan/reactor/internal/logging"
	"github.com/kevwan/reactor/internal/netpoll"
)

const pollTimeoutMs = 10000

// EventLoop is one reactor: exactly one per goroutine, for the life of that
// goroutine (spec.md §4.1, grounded on original_source/event_loop.hpp).
// Every Channel it owns, and every callback that Channel fires, runs on
// this loop's own goroutine; cross-goroutine callers must go through
// RunInLoop/QueueInLoop.
type EventLoop struct {
	looping  int32
	quit     int32
	handling int32
	iteration int64

	threadID int64

	poller         poller
	wakeupFd       *netpoll.EventFd
	wakeupChannel  *Channel
	activeChannels []*Channel
	currentActive  *Channel

	mu              sync.Mutex
	pendingFunctors []func()
	callingPending  int32
}

// NewEventLoop constructs a loop bound to the calling goroutine. Calling it
// a second time from the same goroutine while a prior loop is still live
// returns ErrTwoLoopsOneThread, matching original_source's abort-on-ctor
// check (spec.md §4.1).
func NewEventLoop() (*EventLoop, error) {
	tid := goid.Get()
	if existing := loopInGoroutine.Load(tid); existing != nil {
		return nil, errors.Wrapf(ErrTwoLoopsOneThread, "goroutine %d already owns a loop", tid)
	}

	p, err := newDefaultPoller()
	if err != nil {
		return nil, err
	}
	wfd, err := netpoll.NewEventFd()
	if err != nil {
		return nil, errors.Wrap(err, "reactor: creating wakeup eventfd failed")
	}

	loop := &EventLoop{threadID: tid, poller: p, wakeupFd: wfd}
	loop.wakeupChannel = newChannel(loop, wfd.Fd())
	loop.wakeupChannel.SetReadCallback(loop.handleWakeupRead)
	loop.wakeupChannel.EnableReading()

	loopInGoroutine.Store(tid, loop)
	return loop, nil
}

// loopInGoroutine is the "thread-local slot of one" spec.md §4.1 requires:
// a goroutine id can own at most one live EventLoop at a time.
var loopInGoroutine = newLoopRegistry()

type loopRegistry struct {
	mu sync.Mutex
	m  map[int64]*EventLoop
}

func newLoopRegistry() *loopRegistry { return &loopRegistry{m: make(map[int64]*EventLoop)} }

func (r *loopRegistry) Load(id int64) *EventLoop {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}

func (r *loopRegistry) Store(id int64, l *EventLoop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id] = l
}

func (r *loopRegistry) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

// IsInLoopThread reports whether the calling goroutine is this loop's
// owner.
func (l *EventLoop) IsInLoopThread() bool { return goid.Get() == l.threadID }

// AssertInLoopThread panics if called off the loop's owning goroutine,
// mirroring original_source's assert(isInLoopThread()).
func (l *EventLoop) AssertInLoopThread() {
	if !l.IsInLoopThread() {
		panic(errors.Wrapf(ErrNotInLoopThread, "goroutine %d, loop owned by %d", goid.Get(), l.threadID))
	}
}

// Iteration returns the number of completed poll cycles, exposed for tests
// and diagnostics (SPEC_FULL.md §4.11); the library itself never logs it.
func (l *EventLoop) Iteration() int64 { return atomic.LoadInt64(&l.iteration) }

// Loop runs the reactor until Quit is called. It must run on the goroutine
// that constructed the EventLoop (spec.md §4.1).
func (l *EventLoop) Loop() {
	l.AssertInLoopThread()
	atomic.StoreInt32(&l.looping, 1)
	logging.Infof("EventLoop %p start looping", l)

	for atomic.LoadInt32(&l.quit) == 0 {
		l.activeChannels = l.activeChannels[:0]
		receiveTime, err := l.poller.poll(pollTimeoutMs, &l.activeChannels)
		if err != nil {
			logging.LogErr(errors.Wrap(err, "reactor: poller.poll failed"))
			continue
		}
		atomic.AddInt64(&l.iteration, 1)

		atomic.StoreInt32(&l.handling, 1)
		for _, ch := range l.activeChannels {
			l.currentActive = ch
			ch.handleEvent(receiveTime)
		}
		l.currentActive = nil
		atomic.StoreInt32(&l.handling, 0)

		l.doPendingFunctors()
	}

	logging.Infof("EventLoop %p stop looping", l)
	atomic.StoreInt32(&l.looping, 0)
	loopInGoroutine.Delete(l.threadID)
}

// Quit asks the loop to return from Loop at the next opportunity. Safe to
// call from any goroutine (spec.md §4.1, §8 "quit from another thread").
func (l *EventLoop) Quit() {
	atomic.StoreInt32(&l.quit, 1)
	if !l.IsInLoopThread() {
		l.wakeup()
	}
}

// RunInLoop runs cb immediately if called from the loop's own goroutine,
// otherwise queues it and wakes the loop (spec.md §4.1).
func (l *EventLoop) RunInLoop(cb func()) {
	if l.IsInLoopThread() {
		cb()
	} else {
		l.QueueInLoop(cb)
	}
}

// QueueInLoop always defers cb to run on the loop's own goroutine after the
// current poll iteration, waking the loop when the caller is another
// goroutine or the loop is mid-dispatch of pending functors (spec.md §4.1,
// §9 write-complete capture).
func (l *EventLoop) QueueInLoop(cb func()) {
	l.mu.Lock()
	l.pendingFunctors = append(l.pendingFunctors, cb)
	l.mu.Unlock()

	if !l.IsInLoopThread() || atomic.LoadInt32(&l.callingPending) == 1 {
		l.wakeup()
	}
}

func (l *EventLoop) doPendingFunctors() {
	l.mu.Lock()
	functors := l.pendingFunctors
	l.pendingFunctors = nil
	l.mu.Unlock()

	atomic.StoreInt32(&l.callingPending, 1)
	for _, f := range functors {
		f()
	}
	atomic.StoreInt32(&l.callingPending, 0)
}

func (l *EventLoop) wakeup() {
	if err := l.wakeupFd.WriteEvent(1); err != nil {
		logging.LogErr(errors.Wrap(err, "reactor: wakeup write failed"))
	}
}

func (l *EventLoop) handleWakeupRead(time.Time) {
	if _, err := l.wakeupFd.ReadEvent(); err != nil {
		logging.LogErr(errors.Wrap(err, "reactor: wakeup read failed"))
	}
}

func (l *EventLoop) updateChannel(c *Channel) {
	l.AssertInLoopThread()
	l.poller.updateChannel(c)
}

func (l *EventLoop) removeChannel(c *Channel) {
	l.AssertInLoopThread()
	if l.currentActive == c {
		l.currentActive = nil
	}
	l.poller.removeChannel(c)
}

func (l *EventLoop) hasChannel(c *Channel) bool {
	l.AssertInLoopThread()
	return l.poller.hasChannel(c)
}
