package reactor

import (
	"go.uber.org/zap"

	"github.com/kevwan/reactor/internal/logging"
)

// Option configures a TcpServer at construction time (spec.md §4.7, §6),
// the functional-options idiom this library's example pack's server
// libraries use in place of a struct-literal Events/Options value.
type Option func(*TcpServer)

// WithReusePort binds the listening socket with SO_REUSEPORT (spec.md
// §4.5).
func WithReusePort(on bool) Option {
	return func(s *TcpServer) { s.reusePort = on }
}

// WithThreadNum sets the size of the IO EventLoopThreadPool; 0 keeps all
// connections on the base loop (spec.md §4.4, §4.7).
func WithThreadNum(n int) Option {
	return func(s *TcpServer) { s.threadNum = n }
}

// WithThreadInitCallback registers a callback run once per worker
// goroutine before it starts polling (spec.md §4.4).
func WithThreadInitCallback(cb ThreadInitCallback) Option {
	return func(s *TcpServer) { s.threadInitCB = cb }
}

// WithConnectionCallback registers the connection-established/destroyed
// callback (spec.md §4.6, §6).
func WithConnectionCallback(cb ConnectionCallback) Option {
	return func(s *TcpServer) { s.connectionCB = cb }
}

// WithMessageCallback registers the inbound-data callback (spec.md §4.6,
// §6).
func WithMessageCallback(cb MessageCallback) Option {
	return func(s *TcpServer) { s.messageCB = cb }
}

// WithWriteCompleteCallback registers the output-drained callback
// (spec.md §4.6).
func WithWriteCompleteCallback(cb WriteCompleteCallback) Option {
	return func(s *TcpServer) { s.writeCB = cb }
}

// WithHighWaterMarkCallback registers the callback fired when a
// connection's output buffer crosses mark bytes (spec.md §4.6).
func WithHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) Option {
	return func(s *TcpServer) {
		s.highWaterCB = cb
		s.highWaterMark = mark
	}
}

// WithLogger installs l as the package-wide structured logger in place of
// the zap.NewProduction() default (SPEC_FULL.md ambient logging section).
func WithLogger(l *zap.Logger) Option {
	return func(s *TcpServer) { logging.SetLogger(l) }
}
