package reactor

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/kevwan/reactor/internal/logging"
)

type connState int32

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnecting
	stateDisconnected
)

// TcpConnection is one established, non-blocking connection with its own
// input/output buffers, state machine, and callback set (spec.md §4.6,
// grounded on original_source/tcp_connection.hpp). It always lives on one
// EventLoop for its entire life; Send/Shutdown may be called from any
// goroutine and hop to that loop.
type TcpConnection struct {
	loop *EventLoop
	name string
	sock *Socket
	chn  *Channel

	localAddr InetAddress
	peerAddr  InetAddress

	state int32 // connState, accessed atomically so Channel's tie guard is lock-free

	inputBuffer  *Buffer
	outputBuffer *Buffer

	highWaterMark int

	connectionCB     ConnectionCallback
	messageCB        MessageCallback
	writeCompleteCB  WriteCompleteCallback
	highWaterMarkCB  HighWaterMarkCallback
	closeCB          closeCallback

	context interface{}
}

// NewTcpConnection wraps sockFd into a connection bound to loop, named
// name, with defaults matching original_source's constructor (TCP_NODELAY
// off, default callbacks installed, state Connecting until ConnectEstablished
// runs).
func NewTcpConnection(loop *EventLoop, name string, sockFd int, localAddr, peerAddr InetAddress) *TcpConnection {
	c := &TcpConnection{
		loop:          loop,
		name:          name,
		sock:          newSocketFromFd(sockFd),
		localAddr:     localAddr,
		peerAddr:      peerAddr,
		state:         int32(stateConnecting),
		highWaterMark: 64 * 1024 * 1024,
		inputBuffer:   NewBuffer(),
		outputBuffer:  NewBuffer(),
	}
	c.chn = newChannel(loop, sockFd)
	c.chn.SetReadCallback(c.handleRead)
	c.chn.SetWriteCallback(c.handleWrite)
	c.chn.SetCloseCallback(c.handleClose)
	c.chn.SetErrorCallback(c.handleError)
	c.sock.SetKeepAlive(true)

	c.connectionCB = defaultConnectionCallback
	c.messageCB = defaultMessageCallback
	return c
}

func (c *TcpConnection) Name() string          { return c.name }
func (c *TcpConnection) Loop() *EventLoop      { return c.loop }
func (c *TcpConnection) LocalAddr() InetAddress { return c.localAddr }
func (c *TcpConnection) PeerAddr() InetAddress  { return c.peerAddr }
func (c *TcpConnection) Connected() bool        { return c.getState() == stateConnected }
func (c *TcpConnection) Disconnected() bool     { return c.getState() == stateDisconnected }

// Context/SetContext let callers stash per-connection application state,
// matching original_source's boost::any context slot.
func (c *TcpConnection) Context() interface{}       { return c.context }
func (c *TcpConnection) SetContext(ctx interface{}) { c.context = ctx }

func (c *TcpConnection) SetConnectionCallback(cb ConnectionCallback)         { c.connectionCB = cb }
func (c *TcpConnection) SetMessageCallback(cb MessageCallback)               { c.messageCB = cb }
func (c *TcpConnection) SetWriteCompleteCallback(cb WriteCompleteCallback)   { c.writeCompleteCB = cb }
func (c *TcpConnection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCB = cb
	c.highWaterMark = mark
}
func (c *TcpConnection) setCloseCallback(cb closeCallback) { c.closeCB = cb }

func (c *TcpConnection) getState() connState  { return connState(atomic.LoadInt32(&c.state)) }
func (c *TcpConnection) setState(s connState) { atomic.StoreInt32(&c.state, int32(s)) }

// isDestroyed backs Channel's tie guard (Open Question #1 in DESIGN.md):
// once Disconnected, no queued callback referencing this connection should
// still fire.
func (c *TcpConnection) isDestroyed() bool { return c.getState() == stateDisconnected }

// ConnectEstablished transitions Connecting -> Connected, enables reading,
// and fires the connection callback. Must run on the connection's own loop
// (spec.md §4.6 step 1, §4.8 new_connection).
func (c *TcpConnection) ConnectEstablished() {
	c.loop.AssertInLoopThread()
	if c.getState() != stateConnecting {
		panic("reactor: ConnectEstablished called twice")
	}
	c.setState(stateConnected)
	c.chn.Tie(c)
	c.chn.EnableReading()
	if c.connectionCB != nil {
		c.connectionCB(c)
	}
}

// ConnectDestroyed transitions to Disconnected, disables the channel, and
// removes it from the poller. Must run on the connection's own loop
// (spec.md §4.8 remove_connection).
func (c *TcpConnection) ConnectDestroyed() {
	c.loop.AssertInLoopThread()
	if c.getState() == stateConnected {
		c.setState(stateDisconnected)
		c.chn.DisableAll()
		if c.connectionCB != nil {
			c.connectionCB(c)
		}
	}
	c.setState(stateDisconnected)
	c.chn.Remove()
	c.sock.Close()
}

// Send queues data for the output buffer, writing inline when possible
// (spec.md §4.6 step 2). Safe from any goroutine.
func (c *TcpConnection) Send(data []byte) {
	if c.getState() != stateConnected {
		return
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop(data)
	} else {
		buf := append([]byte(nil), data...)
		c.loop.RunInLoop(func() { c.sendInLoop(buf) })
	}
}

func (c *TcpConnection) sendInLoop(data []byte) {
	c.loop.AssertInLoopThread()
	if c.getState() == stateDisconnected {
		logging.LogErr(errors.Wrapf(ErrConnectionClosed, "Send on connection %s dropped", c.name))
		return
	}

	var (
		nwrote      int
		err         error
		faultError  bool
		remaining   = len(data)
	)

	// Write directly when nothing is already queued and the channel isn't
	// already watching for writability (spec.md §4.6 "fast path").
	if !c.chn.IsWriting() && c.outputBuffer.ReadableBytes() == 0 {
		nwrote, err = unix.Write(c.sock.Fd(), data)
		if err != nil {
			nwrote = 0
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				logging.LogErr(err)
				if err == unix.EPIPE || err == unix.ECONNRESET {
					faultError = true
				}
			}
		} else {
			remaining = len(data) - nwrote
			if remaining == 0 && c.writeCompleteCB != nil {
				conn := c
				c.loop.QueueInLoop(func() { conn.writeCompleteCB(conn) })
			}
		}
	}

	if !faultError && remaining > 0 {
		oldLen := c.outputBuffer.ReadableBytes()
		if oldLen+remaining >= c.highWaterMark && oldLen < c.highWaterMark && c.highWaterMarkCB != nil {
			conn := c
			total := oldLen + remaining
			c.loop.QueueInLoop(func() { conn.highWaterMarkCB(conn, total) })
		}
		c.outputBuffer.Append(data[nwrote:])
		if !c.chn.IsWriting() {
			c.chn.EnableWriting()
		}
	}
}

// Shutdown half-closes the write side once pending output drains
// (spec.md §4.6 step 3 "half-close"). Safe from any goroutine.
func (c *TcpConnection) Shutdown() {
	if c.getState() != stateConnected {
		return
	}
	c.setState(stateDisconnecting)
	c.loop.RunInLoop(c.shutdownInLoop)
}

func (c *TcpConnection) shutdownInLoop() {
	c.loop.AssertInLoopThread()
	if !c.chn.IsWriting() {
		if err := c.sock.ShutdownWrite(); err != nil {
			logging.LogErr(err)
		}
	}
}

// ForceClose tears the connection down immediately regardless of pending
// output, used for abrupt shutdown paths (spec.md §4.6 Non-goals carve-out
// for explicit forced close).
func (c *TcpConnection) ForceClose() {
	if c.getState() == stateConnected || c.getState() == stateDisconnecting {
		c.setState(stateDisconnecting)
		c.loop.QueueInLoop(c.forceCloseInLoop)
	}
}

func (c *TcpConnection) forceCloseInLoop() {
	c.loop.AssertInLoopThread()
	if c.getState() == stateConnected || c.getState() == stateDisconnecting {
		c.handleClose()
	}
}

// SetTCPNoDelay toggles Nagle's algorithm on the underlying socket.
func (c *TcpConnection) SetTCPNoDelay(on bool) { c.sock.SetTCPNoDelay(on) }

func (c *TcpConnection) handleRead(receiveTime time.Time) {
	c.loop.AssertInLoopThread()
	n, err := c.inputBuffer.ReadFd(c.sock.Fd())
	switch {
	case n > 0:
		if c.messageCB != nil {
			c.messageCB(c, c.inputBuffer, receiveTime)
		}
	case n == 0:
		c.handleClose()
	default:
		// n < 0: readv failed. A spurious level-triggered wakeup
		// reporting EAGAIN/EWOULDBLOCK is a no-op (spec.md §7); anything
		// else is a real fault.
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		logging.LogErr(err)
		c.handleError()
	}
}

func (c *TcpConnection) handleWrite() {
	c.loop.AssertInLoopThread()
	if !c.chn.IsWriting() {
		return
	}
	n, err := unix.Write(c.sock.Fd(), c.outputBuffer.Peek())
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		logging.LogErr(err)
		return
	}
	c.outputBuffer.Retrieve(n)
	if c.outputBuffer.ReadableBytes() == 0 {
		c.chn.DisableWriting()
		if c.writeCompleteCB != nil {
			conn := c
			c.loop.QueueInLoop(func() { conn.writeCompleteCB(conn) })
		}
		if c.getState() == stateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

func (c *TcpConnection) handleClose() {
	c.loop.AssertInLoopThread()
	if c.getState() == stateDisconnected {
		return
	}
	c.setState(stateDisconnected)
	c.chn.DisableAll()

	conn := c
	if c.connectionCB != nil {
		c.connectionCB(conn)
	}
	if c.closeCB != nil {
		c.closeCB(conn)
	}
}

func (c *TcpConnection) handleError() {
	err := c.sock.SocketError()
	logging.LogErr(err)
}
