// Package logging is the reactor core's structured-logging sink: a thin
// package-level wrapper over zap, in the same place walkon/gnet keeps its
// own internal/logging package alongside internal/netpoll and internal/socket.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = defaultLogger()
)

func defaultLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		// zap's own fallback never errors in practice; degrade to a no-op
		// sink rather than letting a logging failure take down the reactor.
		return zap.NewNop()
	}
	return l
}

// SetLogger replaces the package-level logger, e.g. with a development
// logger in tests or a caller-supplied *zap.Logger via WithLogger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	get().Sugar().Infof(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	get().Sugar().Errorf(format, args...)
}

// Fatalf logs at fatal level and terminates the process, mirroring the
// abort-on-invariant-violation semantics of setup-fatal faults.
func Fatalf(format string, args ...interface{}) {
	get().Sugar().Fatalf(format, args...)
}

// LogErr logs err at error level when non-nil; a no-op otherwise. Callers
// use this for syscalls whose failure is logged but not fatal, such as
// epoll_ctl(DEL).
func LogErr(err error) {
	if err == nil {
		return
	}
	get().Sugar().Error(err)
}
