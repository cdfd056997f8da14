//go:build linux

package netpoll

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// EventFd is the counter-backed wake-up descriptor EventLoop reads to
// unblock from the poller when cross-thread work arrives (spec.md §4.4,
// glossary "Wake-up descriptor"). The production file behind this exact
// shape was not retrieved from the teacher; it is written directly against
// the interface its own eventfd_linux_test.go exercises.
type EventFd struct {
	fd int
}

// NewEventFd creates a non-blocking, close-on-exec eventfd(2) counter.
func NewEventFd() (*EventFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EventFd{fd: fd}, nil
}

func (e *EventFd) Fd() int { return e.fd }

// WriteEvent adds v to the kernel-held 64-bit counter, waking any reader.
func (e *EventFd) WriteEvent(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := unix.Write(e.fd, buf[:])
	return err
}

// ReadEvent drains and returns the counter, resetting it to zero.
func (e *EventFd) ReadEvent() (uint64, error) {
	var buf [8]byte
	_, err := unix.Read(e.fd, buf[:])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (e *EventFd) Close() error {
	return unix.Close(e.fd)
}
