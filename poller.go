package reactor

import "time"

// poller is the I/O multiplexer an EventLoop owns, wrapping epoll_wait and
// the fd→Channel registry (spec.md §4.3, grounded on
// original_source/epoll_poller.hpp). One poller belongs to exactly one
// EventLoop and is only ever touched from that loop's goroutine.
type poller interface {
	// poll blocks up to timeoutMs and appends the Channels with pending
	// events to activeChannels, returning the wall-clock time at which the
	// wait returned.
	poll(timeoutMs int, activeChannels *[]*Channel) (time.Time, error)
	updateChannel(c *Channel)
	removeChannel(c *Channel)
	hasChannel(c *Channel) bool
	close() error
}
