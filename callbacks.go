package reactor

import (
	"time"

	"github.com/kevwan/reactor/internal/logging"
)

// TimerCallback is referenced by a timer-wheel subsystem outside this
// design's scope (spec.md §1); the type is declared so a host or a future
// timer package can adopt the same shape, but nothing in this module
// invokes it.
type TimerCallback func()

// ConnectionCallback fires with Connected on establishment and Disconnected
// immediately before teardown (spec.md §6).
type ConnectionCallback func(conn *TcpConnection)

// MessageCallback fires once per handleRead with newly readable bytes
// already appended to buf; it may consume all, part, or none of buf
// (spec.md §6). receiveTime is the poller's post-wait wall-clock time.
type MessageCallback func(conn *TcpConnection, buf *Buffer, receiveTime time.Time)

// WriteCompleteCallback fires from the I/O loop once the output buffer has
// fully drained (spec.md §6).
type WriteCompleteCallback func(conn *TcpConnection)

// HighWaterMarkCallback fires when the output buffer's length crosses
// threshold on an upward transition only (spec.md §6, §8).
type HighWaterMarkCallback func(conn *TcpConnection, bufferedBytes int)

// closeCallback is server-internal (spec.md §6: "users should not
// override"); TcpServer installs it to learn when to remove a connection
// from its map.
type closeCallback func(conn *TcpConnection)

func defaultConnectionCallback(conn *TcpConnection) {
	state := "DOWN"
	if conn.Connected() {
		state = "UP"
	}
	logging.Infof("%s -> %s is %s", conn.LocalAddr(), conn.PeerAddr(), state)
}

func defaultMessageCallback(conn *TcpConnection, buf *Buffer, _ time.Time) {
	buf.RetrieveAll()
}
