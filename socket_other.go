//go:build !linux

package reactor

import "errors"

// ErrUnsupportedPlatform mirrors internal/netpoll's sentinel for callers
// that only link the root package; this design targets Linux's epoll +
// eventfd + accept4 family exclusively (spec.md §1 Non-goals).
var ErrUnsupportedPlatform = errors.New("reactor: this reactor core requires linux")

type Socket struct{ fd int }

func newSocket() (*Socket, error)            { return nil, ErrUnsupportedPlatform }
func newSocketFromFd(fd int) *Socket         { return &Socket{fd: fd} }
func (s *Socket) Fd() int                    { return s.fd }
func (s *Socket) Close() error               { return ErrUnsupportedPlatform }
func (s *Socket) SetReuseAddr(on bool)       {}
func (s *Socket) SetReusePort(on bool)       {}
func (s *Socket) SetKeepAlive(on bool)       {}
func (s *Socket) SetTCPNoDelay(on bool)      {}
func (s *Socket) BindAddress(InetAddress) error { return ErrUnsupportedPlatform }
func (s *Socket) Listen() error              { return ErrUnsupportedPlatform }
func (s *Socket) Accept() (int, InetAddress, error) {
	return -1, InetAddress{}, ErrUnsupportedPlatform
}
func (s *Socket) LocalAddr() (InetAddress, error) { return InetAddress{}, ErrUnsupportedPlatform }
func (s *Socket) SocketError() error              { return ErrUnsupportedPlatform }
func (s *Socket) ShutdownWrite() error            { return ErrUnsupportedPlatform }

func reuseportListen(addr InetAddress) (*Socket, error) {
	return nil, ErrUnsupportedPlatform
}
