package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	return fds[0], fds[1]
}

// newEstablishedConn builds a TcpConnection around fd and runs
// ConnectEstablished on loop's own goroutine, blocking until it is done —
// RunInLoop only runs inline when called from the loop's own goroutine, so
// a cross-goroutine caller must wait for the queued functor to finish
// before touching the returned connection.
func newEstablishedConn(t *testing.T, loop *EventLoop, fd int) *TcpConnection {
	t.Helper()
	connCh := make(chan *TcpConnection, 1)
	loop.RunInLoop(func() {
		conn := NewTcpConnection(loop, "test-conn", fd, InetAddress{}, InetAddress{})
		conn.ConnectEstablished()
		connCh <- conn
	})
	return <-connCh
}

func TestTcpConnectionSendFastPath(t *testing.T) {
	loop := startBackgroundLoop(t)
	defer loop.Quit()

	fd, peerFd := socketPair(t)
	defer unix.Close(peerFd)

	conn := newEstablishedConn(t, loop, fd)
	conn.Send([]byte("ping"))

	buf := make([]byte, 16)
	require.Eventually(t, func() bool {
		n, err := unix.Read(peerFd, buf)
		return err == nil && n == 4
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "ping", string(buf[:4]))
}

func TestTcpConnectionSendFromAnotherGoroutine(t *testing.T) {
	loop := startBackgroundLoop(t)
	defer loop.Quit()

	fd, peerFd := socketPair(t)
	defer unix.Close(peerFd)

	conn := newEstablishedConn(t, loop, fd)
	conn.Send([]byte("from-elsewhere"))

	buf := make([]byte, 32)
	require.Eventually(t, func() bool {
		n, err := unix.Read(peerFd, buf)
		return err == nil && n == len("from-elsewhere")
	}, time.Second, 5*time.Millisecond)
}

func TestTcpConnectionShutdownHalfCloses(t *testing.T) {
	loop := startBackgroundLoop(t)
	defer loop.Quit()

	fd, peerFd := socketPair(t)
	defer unix.Close(peerFd)

	conn := newEstablishedConn(t, loop, fd)
	conn.Shutdown()

	buf := make([]byte, 8)
	require.Eventually(t, func() bool {
		n, err := unix.Read(peerFd, buf)
		return n == 0 && err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestTcpConnectionStateAccessors(t *testing.T) {
	loop := startBackgroundLoop(t)
	defer loop.Quit()

	fd, peerFd := socketPair(t)
	defer unix.Close(peerFd)

	conn := newEstablishedConn(t, loop, fd)
	require.True(t, conn.Connected())

	conn.SetContext(42)
	require.Equal(t, 42, conn.Context())
}
