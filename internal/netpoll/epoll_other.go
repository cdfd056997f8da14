//go:build !linux

package netpoll

import "errors"

// ErrUnsupportedPlatform is returned by every entry point on platforms
// without epoll/eventfd; spec.md §1 scopes this design to "a Linux-family
// readiness-notification facility" and explicitly excludes portability work.
var ErrUnsupportedPlatform = errors.New("netpoll: epoll is only supported on linux")

type Op int

const (
	OpAdd Op = iota
	OpDel
	OpMod
)

// Event stands in for unix.EpollEvent so this file type-checks without
// importing golang.org/x/sys/unix on unsupported platforms.
type Event struct {
	Events uint32
	Fd     int32
}

func OpenEpoll() (int, error) {
	return -1, ErrUnsupportedPlatform
}

func Ctl(epfd int, op Op, fd int, events uint32) error {
	return ErrUnsupportedPlatform
}

func Wait(epfd int, events []Event, timeoutMs int) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func CloseFD(fd int) error {
	return ErrUnsupportedPlatform
}
