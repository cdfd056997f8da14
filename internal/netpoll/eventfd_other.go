//go:build !linux

package netpoll

// EventFd stands in for the eventfd-backed wake-up descriptor on platforms
// without eventfd(2); every method reports ErrUnsupportedPlatform.
type EventFd struct{}

func NewEventFd() (*EventFd, error) {
	return nil, ErrUnsupportedPlatform
}

func (e *EventFd) Fd() int { return -1 }

func (e *EventFd) WriteEvent(v uint64) error { return ErrUnsupportedPlatform }

func (e *EventFd) ReadEvent() (uint64, error) { return 0, ErrUnsupportedPlatform }

func (e *EventFd) Close() error { return nil }
