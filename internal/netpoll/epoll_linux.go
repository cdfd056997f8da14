//go:build linux

// Package netpoll wraps the raw epoll(7)/eventfd(2) syscalls behind a small
// surface the reactor's Poller and EventLoop build on, the same seam
// original_source/default_poller.hpp leaves for an alternate Poller
// implementation.
package netpoll

import (
	"golang.org/x/sys/unix"
)

// Event is the readiness record returned by Wait: Fd identifies the
// descriptor and Events carries the EPOLL* bitmask that fired.
type Event = unix.EpollEvent

// Op mirrors the epoll_ctl operations.
type Op int

const (
	OpAdd Op = unix.EPOLL_CTL_ADD
	OpDel Op = unix.EPOLL_CTL_DEL
	OpMod Op = unix.EPOLL_CTL_MOD
)

// OpenEpoll creates a close-on-exec epoll instance.
func OpenEpoll() (int, error) {
	return unix.EpollCreate1(unix.EPOLL_CLOEXEC)
}

// Ctl registers, modifies, or removes fd's interest set (events) on epfd.
// The registered event carries fd in its Fd field, which comes back in the
// corresponding Wait event; the Poller maps it to the owning Channel
// through its own fd->Channel map (spec.md's Poller state).
func Ctl(epfd int, op Op, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(epfd, int(op), fd, &ev)
}

// Wait blocks up to timeoutMs milliseconds (-1 blocks indefinitely) and
// fills events with ready descriptors, retrying transparently on EINTR per
// spec.md §7 ("EINTR on poll -> ignore").
func Wait(epfd int, events []Event, timeoutMs int) (int, error) {
	for {
		n, err := unix.EpollWait(epfd, events, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// CloseFD closes an arbitrary descriptor, used for the epoll fd itself.
func CloseFD(fd int) error {
	return unix.Close(fd)
}
