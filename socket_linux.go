//go:build linux

package reactor

import (
	"net"
	"os"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/kevwan/reactor/internal/logging"
)

// Socket owns exactly one file descriptor; fd is closed exactly once, in
// Close, never implicitly (spec.md §5, grounded on
// original_source/socket.hpp). pinned, when set, is the *os.File the fd was
// detached from (the reuseport path): its own finalizer would otherwise
// close the dup'd fd out from under us, so Socket keeps it alive and closes
// it instead of the raw fd.
type Socket struct {
	fd     int
	pinned *os.File
}

// newSocket creates a non-blocking, close-on-exec TCP socket (spec.md §4.5,
// §6: listening and accepted sockets are both non-blocking + close-on-exec).
func newSocket() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errors.Wrap(err, "reactor: socket() failed")
	}
	return &Socket{fd: fd}, nil
}

// newSocketFromFd wraps an already-open fd (e.g. from accept4), matching
// original_source/socket.hpp's explicit Socket(int) constructor.
func newSocketFromFd(fd int) *Socket { return &Socket{fd: fd} }

func (s *Socket) Fd() int { return s.fd }

// Close closes the underlying fd; safe to call exactly once per spec.md §5
// ("close runs exactly once in the owner's destructor").
func (s *Socket) Close() error {
	if s.pinned != nil {
		return s.pinned.Close()
	}
	return unix.Close(s.fd)
}

// SetReuseAddr sets SO_REUSEADDR, always on for listening sockets per
// spec.md §4.5/§6.
func (s *Socket) SetReuseAddr(on bool) {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(on)); err != nil {
		logging.LogErr(errors.Wrap(err, "setsockopt SO_REUSEADDR failed"))
	}
}

// SetReusePort sets SO_REUSEPORT, the optional half of spec.md §4.5.
func (s *Socket) SetReusePort(on bool) {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolToInt(on)); err != nil && on {
		logging.LogErr(errors.Wrap(err, "setsockopt SO_REUSEPORT failed"))
	}
}

// SetKeepAlive sets SO_KEEPALIVE, always on for accepted sockets (spec.md
// §6).
func (s *Socket) SetKeepAlive(on bool) {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on)); err != nil {
		logging.LogErr(errors.Wrap(err, "setsockopt SO_KEEPALIVE failed"))
	}
}

// SetTCPNoDelay sets TCP_NODELAY, optional per connection (spec.md §6).
func (s *Socket) SetTCPNoDelay(on bool) {
	if err := unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on)); err != nil {
		logging.LogErr(errors.Wrap(err, "setsockopt TCP_NODELAY failed"))
	}
}

// BindAddress binds the socket to localAddr; failure is setup-fatal
// (spec.md §7).
func (s *Socket) BindAddress(localAddr InetAddress) error {
	if err := unix.Bind(s.fd, localAddr.toSockaddr()); err != nil {
		return errors.Wrap(err, "reactor: bind() failed")
	}
	return nil
}

// Listen marks the socket listening with a kernel-maximum backlog; failure
// is setup-fatal (spec.md §7).
func (s *Socket) Listen() error {
	if err := unix.Listen(s.fd, unix.SOMAXCONN); err != nil {
		return errors.Wrap(err, "reactor: listen() failed")
	}
	return nil
}

// Accept performs a single non-blocking, close-on-exec accept4 and returns
// the new fd and peer address (spec.md §4.5).
func (s *Socket) Accept() (int, InetAddress, error) {
	nfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, InetAddress{}, err
	}
	return nfd, inetAddressFromSockaddr(sa), nil
}

// LocalAddr recovers the locally bound address via getsockname (spec.md
// §4.8 step 3).
func (s *Socket) LocalAddr() (InetAddress, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return InetAddress{}, errors.Wrap(err, "reactor: getsockname() failed")
	}
	return inetAddressFromSockaddr(sa), nil
}

// SocketError reads and clears SO_ERROR, used by TcpConnection.handleError
// (spec.md §4.6).
func (s *Socket) SocketError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// ShutdownWrite issues a half-close on the write side (spec.md §4.6
// "half-close").
func (s *Socket) ShutdownWrite() error {
	if err := unix.Shutdown(s.fd, unix.SHUT_WR); err != nil {
		return errors.Wrap(err, "reactor: shutdown(SHUT_WR) failed")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// reuseportListen builds a listening socket with SO_REUSEPORT set before
// bind, the one path the raw Socket type cannot express itself because the
// option must be set between socket() and bind() on the *same* fd the
// kernel load-balances across processes — go_reuseport owns that sequence
// (teacher's own dependency, spec.md §4.5's "REUSEPORT optional").
//
// The stdlib *net.TCPListener go_reuseport hands back is detached from its
// fd and made non-blocking, the same "system()" dance kevwan-evio's
// listener.system() performs on a plain net.Listener.
func reuseportListen(addr InetAddress) (*Socket, error) {
	ln, err := reuseport.Listen("tcp4", addr.String())
	if err != nil {
		return nil, errors.Wrap(err, "reactor: reuseport listen failed")
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, errors.New("reactor: go_reuseport returned a non-TCP listener")
	}
	f, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return nil, errors.Wrap(err, "reactor: detaching reuseport listener fd failed")
	}
	// File() dup'd the fd; the original listener can close its own copy.
	ln.Close()
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "reactor: setting reuseport fd non-blocking failed")
	}
	return &Socket{fd: fd, pinned: f}, nil
}
