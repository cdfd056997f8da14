// Package goid answers "which goroutine is this" well enough for the
// one-loop-per-thread assertions original_source/current_thread.hpp makes
// with pthread_self(). Go has no public goroutine-identity API, so this
// parses the "goroutine N [running]:" header runtime.Stack always emits.
// It is called from NewEventLoop and from every EventLoop
// IsInLoopThread/AssertInLoopThread check, including the ones on
// TcpConnection's read/write path.
package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Get returns the calling goroutine's runtime-assigned id.
func Get() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return -1
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
