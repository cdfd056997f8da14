package reactor

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startEchoServer constructs the base EventLoop, the TcpServer, and starts
// it all on one dedicated goroutine before that goroutine ever enters
// Loop() — NewEventLoop and the later blocking Loop() call must run on the
// same goroutine (spec.md §4.1), matching how original_source's main()
// builds everything on one thread before calling loop.loop(). Only Quit,
// which is explicitly cross-goroutine-safe, is called from the test
// goroutine afterward.
func startEchoServer(t *testing.T, opts ...Option) (*TcpServer, *EventLoop, func()) {
	t.Helper()

	type setup struct {
		server *TcpServer
		loop   *EventLoop
		err    error
	}
	setupCh := make(chan setup, 1)
	loopDone := make(chan struct{})

	addr := NewInetAddress(0, true)
	allOpts := append([]Option{
		WithMessageCallback(func(conn *TcpConnection, buf *Buffer, _ time.Time) {
			conn.Send(buf.RetrieveBytes(buf.ReadableBytes()))
		}),
	}, opts...)

	go func() {
		loop, err := NewEventLoop()
		if err != nil {
			setupCh <- setup{err: err}
			return
		}
		server, err := NewTcpServer(loop, addr, "echo-test", allOpts...)
		if err != nil {
			setupCh <- setup{err: err}
			return
		}
		if err := server.Start(); err != nil {
			setupCh <- setup{err: err}
			return
		}
		setupCh <- setup{server: server, loop: loop}
		loop.Loop()
		close(loopDone)
	}()

	s := <-setupCh
	require.NoError(t, s.err)

	cleanup := func() {
		s.loop.Quit()
		<-loopDone
	}
	return s.server, s.loop, cleanup
}

func TestEchoServerRoundTrip(t *testing.T) {
	server, _, cleanup := startEchoServer(t)
	defer cleanup()

	laddr, err := server.ListenAddr()
	require.NoError(t, err)

	conn, err := net.Dial("tcp4", laddr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello reactor"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello reactor", string(buf[:n]))
}

func TestCrossThreadSend(t *testing.T) {
	var serverConn *TcpConnection
	connEstablished := make(chan struct{}, 1)

	server, _, cleanup := startEchoServer(t, WithThreadNum(2), WithConnectionCallback(func(conn *TcpConnection) {
		if conn.Connected() {
			serverConn = conn
			connEstablished <- struct{}{}
		}
	}))
	defer cleanup()

	laddr, err := server.ListenAddr()
	require.NoError(t, err)

	conn, err := net.Dial("tcp4", laddr.String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-connEstablished:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never established")
	}

	// Send from this test goroutine, which is neither the base loop's nor
	// the connection's own IO-loop goroutine (spec.md §8 "cross-thread
	// send").
	serverConn.Send([]byte("pushed"))

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pushed", string(buf[:n]))
}

func TestHighWaterMarkCallback(t *testing.T) {
	hit := make(chan int, 1)
	const mark = 1024

	server, _, cleanup := startEchoServer(t, WithHighWaterMarkCallback(func(conn *TcpConnection, bufferedBytes int) {
		select {
		case hit <- bufferedBytes:
		default:
		}
	}, mark))
	defer cleanup()

	laddr, err := server.ListenAddr()
	require.NoError(t, err)

	conn, err := net.Dial("tcp4", laddr.String())
	require.NoError(t, err)
	defer conn.Close()

	// The client never reads, so the server's kernel send buffer plus
	// outputBuffer eventually exceeds mark and the high-water callback
	// fires exactly once per upward crossing (spec.md §4.6, §8).
	payload := make([]byte, 4096)
	for i := 0; i < 64; i++ {
		if _, err := conn.Write(payload); err != nil {
			break
		}
	}

	select {
	case n := <-hit:
		require.GreaterOrEqual(t, n, mark)
	case <-time.After(2 * time.Second):
		t.Fatal("high water mark callback never fired")
	}
}

func TestHalfCloseShutdown(t *testing.T) {
	server, _, cleanup := startEchoServer(t)
	defer cleanup()

	laddr, err := server.ListenAddr()
	require.NoError(t, err)

	conn, err := net.Dial("tcp4", laddr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.True(t, err == io.EOF || err == nil)
}
