package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// Event bits, aliased from the epoll constants so callers never import
// golang.org/x/sys/unix just to enable reading/writing (spec.md §4.2).
const (
	eventNone  uint32 = 0
	eventRead  uint32 = unix.EPOLLIN | unix.EPOLLPRI
	eventWrite uint32 = unix.EPOLLOUT
)

// pollerStatus tracks a Channel's registration lifecycle with the Poller's
// fd map (spec.md §4.3).
type pollerStatus int

const (
	statusNew pollerStatus = iota
	statusAdded
	statusDeleted
)

// Channel binds one fd to its owning EventLoop and routes readiness bits to
// per-event callbacks (spec.md §3, §4.2). All mutating operations happen on
// the owning loop's goroutine; the fd itself is not owned, never closed, by
// the Channel.
type Channel struct {
	loop    *EventLoop
	fd      int
	events  uint32
	revents uint32
	status  pollerStatus

	readCallback  func(receiveTime time.Time)
	writeCallback func()
	closeCallback func()
	errorCallback func()

	// tie is the weak back-reference to a TcpConnection spec.md §9
	// describes. Go's GC means holding a plain pointer here is safe — it
	// cannot dangle — so the "upgrade or abandon" guard instead checks the
	// connection's own atomic disconnected flag (see Open Question #1 in
	// DESIGN.md) rather than a generation-counted slot table.
	tie *TcpConnection
}

// newChannel constructs a Channel bound to loop for fd, starting in status
// New with no interest bits set (spec.md §3).
func newChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, status: statusNew}
}

func (c *Channel) Fd() int { return c.fd }

// Tie attaches the logical owner; on readiness dispatch, a destroyed
// owner's callbacks are suppressed (spec.md §4.2 step 1, §9).
func (c *Channel) Tie(conn *TcpConnection) { c.tie = conn }

func (c *Channel) SetReadCallback(cb func(time.Time)) { c.readCallback = cb }
func (c *Channel) SetWriteCallback(cb func())         { c.writeCallback = cb }
func (c *Channel) SetCloseCallback(cb func())         { c.closeCallback = cb }
func (c *Channel) SetErrorCallback(cb func())         { c.errorCallback = cb }

func (c *Channel) IsNoneEvent() bool { return c.events == eventNone }
func (c *Channel) IsWriting() bool   { return c.events&eventWrite != 0 }
func (c *Channel) IsReading() bool   { return c.events&eventRead != 0 }

func (c *Channel) Events() uint32  { return c.events }
func (c *Channel) Revents() uint32 { return c.revents }

// SetRevents is called by the Poller after epoll_wait to stash the fired
// bits before handleEvent runs (spec.md §4.3).
func (c *Channel) SetRevents(revents uint32) { c.revents = revents }

func (c *Channel) Status() pollerStatus     { return c.status }
func (c *Channel) setStatus(s pollerStatus) { c.status = s }

// EnableReading, DisableReading, EnableWriting, DisableWriting, and
// DisableAll each mutate the interest mask then synchronize with the
// Poller via the owning loop, exactly the update() call original_source's
// channel.hpp makes on every mutation (spec.md §4.2).
func (c *Channel) EnableReading() {
	c.events |= eventRead
	c.update()
}

func (c *Channel) DisableReading() {
	c.events &^= eventRead
	c.update()
}

func (c *Channel) EnableWriting() {
	c.events |= eventWrite
	c.update()
}

func (c *Channel) DisableWriting() {
	c.events &^= eventWrite
	c.update()
}

func (c *Channel) DisableAll() {
	c.events = eventNone
	c.update()
}

func (c *Channel) update() {
	c.loop.updateChannel(c)
}

// Remove must only be called after DisableAll (spec.md §3 lifecycle:
// "must be DisableAll+Removed before destruction").
func (c *Channel) Remove() {
	c.loop.removeChannel(c)
}

// eventsToString renders the fired readiness bits for debug logging only
// (SPEC_FULL.md §4.11); it never participates in control flow.
func (c *Channel) eventsToString(mask uint32) string {
	var out string
	add := func(bit uint32, name string) {
		if mask&bit != 0 {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	add(unix.EPOLLIN, "EPOLLIN")
	add(unix.EPOLLPRI, "EPOLLPRI")
	add(unix.EPOLLOUT, "EPOLLOUT")
	add(unix.EPOLLHUP, "EPOLLHUP")
	add(unix.EPOLLRDHUP, "EPOLLRDHUP")
	add(unix.EPOLLERR, "EPOLLERR")
	if out == "" {
		out = "NONE"
	}
	return out
}

// handleEvent dispatches the stashed revents in the exact order spec.md
// §4.2 mandates: tie guard, then close, error, read, write — any subset
// may fire for a single readiness notification.
func (c *Channel) handleEvent(receiveTime time.Time) {
	if c.tie != nil && c.tie.isDestroyed() {
		return
	}

	if c.revents&unix.EPOLLHUP != 0 && c.revents&unix.EPOLLIN == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.revents&unix.EPOLLERR != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}
	if c.revents&unix.EPOLLOUT != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
