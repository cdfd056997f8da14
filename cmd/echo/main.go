// Command echo runs a TCP echo server exercising the full library surface:
// a single base loop, a small IO thread pool, and the connection/message
// callback pair (SPEC_FULL.md §6, grounded on
// kevwan-evio/examples/simple/server.go's package-main/construct/Serve
// shape, translated to the EventLoop/TcpServer API).
package main

import (
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/kevwan/reactor"
	"github.com/kevwan/reactor/internal/logging"
)

func main() {
	port := flag.Uint("port", 5007, "port to listen on")
	threads := flag.Int("threads", 4, "IO thread count")
	reusePort := flag.Bool("reuseport", false, "set SO_REUSEPORT on the listening socket")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logging.SetLogger(logger)

	loop, err := reactor.NewEventLoop()
	if err != nil {
		logger.Sugar().Fatalf("reactor.NewEventLoop: %v", err)
	}

	addr := reactor.NewInetAddress(uint16(*port), false)
	server, err := reactor.NewTcpServer(loop, addr, "echo",
		reactor.WithThreadNum(*threads),
		reactor.WithReusePort(*reusePort),
		reactor.WithConnectionCallback(onConnection),
		reactor.WithMessageCallback(onMessage),
	)
	if err != nil {
		logger.Sugar().Fatalf("reactor.NewTcpServer: %v", err)
	}

	if err := server.Start(); err != nil {
		logger.Sugar().Fatalf("TcpServer.Start: %v", err)
	}

	logger.Sugar().Infof("echo server listening on port %d with %d IO threads", *port, *threads)
	loop.Loop()
}

func onConnection(conn *reactor.TcpConnection) {
	if conn.Connected() {
		logging.Infof("new connection %s from %s", conn.Name(), conn.PeerAddr().String())
	} else {
		logging.Infof("connection %s closed", conn.Name())
	}
}

func onMessage(conn *reactor.TcpConnection, buf *reactor.Buffer, receiveTime time.Time) {
	conn.Send(buf.RetrieveBytes(buf.ReadableBytes()))
}
