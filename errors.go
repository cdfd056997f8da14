package reactor

import "github.com/pkg/errors"

// Sentinel errors surfaced at the library boundary. Everything else is an
// invariant violation reported via a panic (spec.md §7's "abort").
var (
	// ErrTwoLoopsOneThread is returned by NewEventLoop when the calling
	// goroutine already hosts a live EventLoop (spec.md §3, §8 scenario 6).
	// Goroutine identity is tracked via internal/goid, not an OS thread id,
	// since Go goroutines otherwise migrate freely between threads; see
	// loopInGoroutine in eventloop.go.
	ErrTwoLoopsOneThread = errors.New("reactor: a second EventLoop was constructed on a goroutine that already owns one")

	// ErrServerAlreadyStarted guards TcpServer.Start against a second
	// invocation (spec.md §8 scenario 6's sibling case for TcpServer).
	ErrServerAlreadyStarted = errors.New("reactor: server already started")

	// ErrPoolAlreadyStarted guards EventLoopThreadPool.Start against a
	// second invocation (spec.md §4.7: "Start(init) may be called only
	// once").
	ErrPoolAlreadyStarted = errors.New("reactor: thread pool already started")

	// ErrNotInLoopThread is the assertion failure backing
	// AssertInLoopThread; it is only ever wrapped into that method's panic,
	// never returned, matching spec.md §7's "wrong-thread invariants: abort".
	ErrNotInLoopThread = errors.New("reactor: operation attempted off the owning loop's goroutine")

	// ErrConnectionClosed names the condition TcpConnection.Send silently
	// drops-and-warns on rather than returns (spec.md §4.6 write path: "If
	// Disconnected -> drop, warn"). Exposed as a sentinel so callers that
	// want to assert on it in tests, or that wrap their own Send variant
	// with an error return, have a stable value to compare against.
	ErrConnectionClosed = errors.New("reactor: connection is not connected")
)
