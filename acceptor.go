package reactor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/kevwan/reactor/internal/logging"
)

// NewConnectionCallback is invoked on the Acceptor's loop with a freshly
// accepted fd and the peer address, before any TcpConnection exists
// (spec.md §4.5).
type NewConnectionCallback func(sockFd int, peerAddr InetAddress)

// Acceptor owns the listening socket and hands accepted fds to TcpServer
// (spec.md §4.5, grounded on original_source/acceptor.hpp). It always
// lives on the TcpServer's base loop, never on a worker loop.
type Acceptor struct {
	loop        *EventLoop
	sock        *Socket
	channel     *Channel
	listening   bool
	reusePort   bool
	spareFd     int
	newConnCB   NewConnectionCallback
}

// NewAcceptor binds and, if reusePort is set, SO_REUSEPORT-configures a
// listening socket at listenAddr (spec.md §4.5, §7).
func NewAcceptor(loop *EventLoop, listenAddr InetAddress, reusePort bool) (*Acceptor, error) {
	var sock *Socket
	var err error

	if reusePort {
		sock, err = reuseportListen(listenAddr)
		if err != nil {
			return nil, err
		}
	} else {
		sock, err = newSocket()
		if err != nil {
			return nil, err
		}
		sock.SetReuseAddr(true)
		if err := sock.BindAddress(listenAddr); err != nil {
			sock.Close()
			return nil, err
		}
	}

	// A spare fd held in reserve so accept() can still succeed when the
	// process is out of file descriptors, then be immediately closed to
	// shed the new connection cleanly instead of spinning on EMFILE
	// (spec.md §4.5 edge case, grounded on original_source/acceptor.hpp's
	// idleFd trick).
	spareFd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		sock.Close()
		return nil, err
	}

	a := &Acceptor{loop: loop, sock: sock, reusePort: reusePort, spareFd: spareFd}
	a.channel = newChannel(loop, sock.Fd())
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// SetNewConnectionCallback registers the callback invoked per accepted fd.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) { a.newConnCB = cb }

// Listening reports whether Listen has been called.
func (a *Acceptor) Listening() bool { return a.listening }

// LocalAddr returns the address the listening socket is bound to, useful
// when constructed with an ephemeral port (spec.md §4.5).
func (a *Acceptor) LocalAddr() (InetAddress, error) { return a.sock.LocalAddr() }

// Listen marks the socket listening and starts watching it for readability
// (spec.md §4.5, §7). Must run on the Acceptor's loop.
func (a *Acceptor) Listen() error {
	a.loop.AssertInLoopThread()
	a.listening = true
	if err := a.sock.Listen(); err != nil {
		return err
	}
	a.channel.EnableReading()
	return nil
}

// Close tears down the listening socket and spare fd; called once during
// TcpServer shutdown.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	if a.spareFd >= 0 {
		unix.Close(a.spareFd)
		a.spareFd = -1
	}
	return a.sock.Close()
}

func (a *Acceptor) handleRead(time.Time) {
	a.loop.AssertInLoopThread()

	fd, peerAddr, err := a.sock.Accept()
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err == unix.EMFILE || err == unix.ENFILE {
			logging.LogErr(err)
			// Shed the pending connection by freeing the spare fd,
			// accepting (which will now succeed), and immediately
			// closing it, then reclaiming a spare fd for next time.
			unix.Close(a.spareFd)
			nfd, _, acceptErr := a.sock.Accept()
			if acceptErr == nil {
				unix.Close(nfd)
			}
			a.spareFd, _ = unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
			return
		}
		logging.LogErr(err)
		return
	}

	if a.newConnCB != nil {
		a.newConnCB(fd, peerAddr)
	} else {
		unix.Close(fd)
	}
}
