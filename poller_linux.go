//go:build linux

package reactor

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kevwan/reactor/internal/netpoll"
)

const initialEventListSize = 16

// epollPoller is the linux poller backend, a thin orchestration layer over
// internal/netpoll's raw epoll wrapper (spec.md §4.3, grounded on
// original_source/epoll_poller.hpp: channels map keyed by fd, event list
// that doubles in size whenever epoll_wait fills it completely).
type epollPoller struct {
	epfd     int
	events   []netpoll.Event
	channels map[int]*Channel
}

func newPoller() (*epollPoller, error) {
	epfd, err := netpoll.OpenEpoll()
	if err != nil {
		return nil, errors.Wrap(err, "reactor: epoll_create1 failed")
	}
	return &epollPoller{
		epfd:     epfd,
		events:   make([]netpoll.Event, initialEventListSize),
		channels: make(map[int]*Channel),
	}, nil
}

func (p *epollPoller) poll(timeoutMs int, activeChannels *[]*Channel) (time.Time, error) {
	n, err := netpoll.Wait(p.epfd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		return now, errors.Wrap(err, "reactor: epoll_wait failed")
	}
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(ev.Events)
		*activeChannels = append(*activeChannels, ch)
	}
	if n == len(p.events) {
		p.events = make([]netpoll.Event, len(p.events)*2)
	}
	return now, nil
}

func (p *epollPoller) updateChannel(c *Channel) {
	switch c.Status() {
	case statusNew, statusDeleted:
		p.channels[c.Fd()] = c
		c.setStatus(statusAdded)
		p.ctl(netpoll.OpAdd, c)
	case statusAdded:
		if c.IsNoneEvent() {
			p.ctl(netpoll.OpDel, c)
			c.setStatus(statusDeleted)
		} else {
			p.ctl(netpoll.OpMod, c)
		}
	}
}

func (p *epollPoller) removeChannel(c *Channel) {
	fd := c.Fd()
	delete(p.channels, fd)
	if c.Status() == statusAdded {
		p.ctl(netpoll.OpDel, c)
	}
	c.setStatus(statusNew)
}

func (p *epollPoller) hasChannel(c *Channel) bool {
	ch, ok := p.channels[c.Fd()]
	return ok && ch == c
}

func (p *epollPoller) close() error {
	return netpoll.CloseFD(p.epfd)
}

func (p *epollPoller) ctl(op netpoll.Op, c *Channel) {
	if err := netpoll.Ctl(p.epfd, op, c.Fd(), c.Events()); err != nil {
		panic(errors.Wrapf(err, "reactor: epoll_ctl(%d, fd=%d) failed", op, c.Fd()))
	}
}

func newDefaultPoller() (poller, error) { return newPoller() }
