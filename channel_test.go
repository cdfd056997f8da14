package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestChannelEventMasks(t *testing.T) {
	loop := startBackgroundLoop(t)
	defer loop.Quit()

	r, w, err := newPipe(t)
	require.NoError(t, err)
	defer unix.Close(r)
	defer unix.Close(w)

	ch := newChannel(loop, r)
	require.True(t, ch.IsNoneEvent())

	loop.RunInLoop(ch.EnableReading)
	time.Sleep(10 * time.Millisecond)
	require.True(t, ch.IsReading())

	loop.RunInLoop(ch.EnableWriting)
	time.Sleep(10 * time.Millisecond)
	require.True(t, ch.IsWriting())

	loop.RunInLoop(ch.DisableAll)
	time.Sleep(10 * time.Millisecond)
	require.True(t, ch.IsNoneEvent())

	loop.RunInLoop(ch.Remove)
}

func TestChannelHandleEventDispatchOrder(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	ch := newChannel(loop, 0)

	var order []string
	ch.SetCloseCallback(func() { order = append(order, "close") })
	ch.SetErrorCallback(func() { order = append(order, "error") })
	ch.SetReadCallback(func(time.Time) { order = append(order, "read") })
	ch.SetWriteCallback(func() { order = append(order, "write") })

	ch.SetRevents(unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLRDHUP | unix.EPOLLOUT)
	ch.handleEvent(time.Now())

	require.Equal(t, []string{"close", "error", "read", "write"}, order)
}

func TestChannelHandleEventSuppressesHupWhenInSet(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	ch := newChannel(loop, 0)

	var closed bool
	ch.SetCloseCallback(func() { closed = true })
	ch.SetRevents(unix.EPOLLHUP | unix.EPOLLIN)
	var read bool
	ch.SetReadCallback(func(time.Time) { read = true })
	ch.handleEvent(time.Now())

	require.False(t, closed)
	require.True(t, read)
}

func newPipe(t *testing.T) (int, int, error) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}
