package reactor

import (
	"fmt"
	"sync"

	"github.com/kevwan/reactor/internal/logging"
)

// TcpServer owns one Acceptor on a base loop and fans accepted connections
// out across an EventLoopThreadPool (spec.md §4.7, grounded on
// original_source/tcp_server.hpp). Construct with New/Options, register
// callbacks, then call Start exactly once.
type TcpServer struct {
	baseLoop *EventLoop
	name     string
	ipPort   string

	acceptor *Acceptor
	pool     *EventLoopThreadPool

	connectionCB  ConnectionCallback
	messageCB     MessageCallback
	writeCB       WriteCompleteCallback
	highWaterCB   HighWaterMarkCallback
	highWaterMark int

	threadInitCB ThreadInitCallback
	reusePort    bool
	threadNum    int

	mu          sync.Mutex
	started     bool
	nextConnID  int
	connections map[string]*TcpConnection
}

// NewTcpServer constructs a server named name listening at listenAddr.
// Apply Options to configure thread count, reuseport, and callbacks before
// calling Start (spec.md §4.7, §6).
func NewTcpServer(baseLoop *EventLoop, listenAddr InetAddress, name string, opts ...Option) (*TcpServer, error) {
	s := &TcpServer{
		baseLoop:      baseLoop,
		name:          name,
		ipPort:        listenAddr.String(),
		connectionCB:  defaultConnectionCallback,
		messageCB:     defaultMessageCallback,
		highWaterMark: 64 * 1024 * 1024,
		connections:   make(map[string]*TcpConnection),
	}
	for _, opt := range opts {
		opt(s)
	}

	acceptor, err := NewAcceptor(baseLoop, listenAddr, s.reusePort)
	if err != nil {
		return nil, err
	}
	acceptor.SetNewConnectionCallback(s.newConnection)
	s.acceptor = acceptor
	s.pool = NewEventLoopThreadPool(baseLoop, s.threadNum, s.threadInitCB)
	return s, nil
}

func (s *TcpServer) SetConnectionCallback(cb ConnectionCallback)       { s.connectionCB = cb }
func (s *TcpServer) SetMessageCallback(cb MessageCallback)             { s.messageCB = cb }
func (s *TcpServer) SetWriteCompleteCallback(cb WriteCompleteCallback) { s.writeCB = cb }
func (s *TcpServer) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	s.highWaterCB = cb
	s.highWaterMark = mark
}

// Start spins up the thread pool and begins listening. Calling Start twice
// returns ErrServerAlreadyStarted (spec.md §4.7).
func (s *TcpServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if err := s.pool.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	s.baseLoop.RunInLoop(func() {
		done <- s.acceptor.Listen()
	})
	return <-done
}

// newConnection runs on the base loop (the Acceptor's loop): it picks the
// next worker loop, names and constructs the connection, and hops
// ConnectEstablished onto that loop (spec.md §4.7, §4.8, naming scheme
// "<server>-<ip_port>#<n>").
func (s *TcpServer) newConnection(sockFd int, peerAddr InetAddress) {
	s.baseLoop.AssertInLoopThread()
	ioLoop := s.pool.NextLoop()

	s.mu.Lock()
	s.nextConnID++
	connName := fmt.Sprintf("%s-%s#%d", s.name, s.ipPort, s.nextConnID)
	s.mu.Unlock()

	logging.Infof("TcpServer::newConnection [%s] - new connection [%s] from %s", s.name, connName, peerAddr.String())

	localAddr, err := newSocketFromFd(sockFd).LocalAddr()
	if err != nil {
		logging.LogErr(err)
	}

	conn := NewTcpConnection(ioLoop, connName, sockFd, localAddr, peerAddr)
	s.mu.Lock()
	s.connections[connName] = conn
	s.mu.Unlock()

	conn.SetConnectionCallback(s.connectionCB)
	conn.SetMessageCallback(s.messageCB)
	conn.SetWriteCompleteCallback(s.writeCB)
	conn.SetHighWaterMarkCallback(s.highWaterCB, s.highWaterMark)
	conn.setCloseCallback(s.removeConnection)

	ioLoop.RunInLoop(conn.ConnectEstablished)
}

// removeConnection hops back to the base loop to drop the connection from
// the map, matching original_source's remove_connection ->
// remove_connection_in_loop base-loop bounce (spec.md §4.8).
func (s *TcpServer) removeConnection(conn *TcpConnection) {
	s.baseLoop.RunInLoop(func() { s.removeConnectionInLoop(conn) })
}

func (s *TcpServer) removeConnectionInLoop(conn *TcpConnection) {
	s.baseLoop.AssertInLoopThread()
	logging.Infof("TcpServer::removeConnectionInLoop [%s] - connection %s", s.name, conn.Name())

	s.mu.Lock()
	delete(s.connections, conn.Name())
	s.mu.Unlock()

	ioLoop := conn.Loop()
	ioLoop.QueueInLoop(conn.ConnectDestroyed)
}

// Close tears the server down (spec.md §4.8, grounded on
// original_source/tcp_server.hpp's ~TcpServer): on the base loop, every
// live connection's strong reference is dropped from the map and its
// ConnectDestroyed is handed to its own I/O loop via RunInLoop — queued
// for a worker loop, run inline for a connection that lives on the base
// loop — then the acceptor is closed, and every loop in the pool — plus
// the base loop itself — is asked to quit.
func (s *TcpServer) Close() error {
	done := make(chan error, 1)
	s.baseLoop.RunInLoop(func() {
		done <- s.closeInLoop()
	})
	return <-done
}

func (s *TcpServer) closeInLoop() error {
	s.baseLoop.AssertInLoopThread()
	logging.Infof("TcpServer::closeInLoop [%s] destructing", s.name)

	s.mu.Lock()
	conns := make([]*TcpConnection, 0, len(s.connections))
	for name, conn := range s.connections {
		conns = append(conns, conn)
		delete(s.connections, name)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Loop().RunInLoop(conn.ConnectDestroyed)
	}

	err := s.acceptor.Close()

	for _, loop := range s.pool.AllLoops() {
		loop.Quit()
	}
	s.baseLoop.Quit()

	return err
}

// ListenAddr returns the address the server's listening socket is bound
// to, resolving an ephemeral (":0") port to the one the kernel assigned.
func (s *TcpServer) ListenAddr() (InetAddress, error) { return s.acceptor.LocalAddr() }

// ConnectionCount returns the number of live connections.
func (s *TcpServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}
