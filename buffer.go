package reactor

import "golang.org/x/sys/unix"

// PrependReserve is the cheap-prepend region reserved at the front of every
// Buffer so higher layers can splice in a length header without a copy
// (spec.md glossary "Cheap prepend", grounded on original_source/buffer.hpp
// kCheapPrepend).
const PrependReserve = 8

// initialBufferSize is the writable region size a freshly constructed
// Buffer starts with, matching original_source/buffer.hpp's kInitialSize.
const initialBufferSize = 1024

// overflowSize is the stack buffer Buffer.ReadFd uses as the second iovec
// so a single read can absorb more than the current writable region
// without pre-sizing (spec.md §4.1).
const overflowSize = 65536

// Buffer is a growable byte deque with three indices:
// PrependReserve <= readerIndex <= writerIndex <= len(buf). It is private to
// one TcpConnection; there is no cross-connection sharing (spec.md §5).
type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
}

// NewBuffer constructs an empty Buffer with the default initial capacity.
func NewBuffer() *Buffer {
	return &Buffer{
		buf:         make([]byte, PrependReserve+initialBufferSize),
		readerIndex: PrependReserve,
		writerIndex: PrependReserve,
	}
}

// ReadableBytes returns the number of bytes available to Peek/Retrieve.
func (b *Buffer) ReadableBytes() int { return b.writerIndex - b.readerIndex }

// WritableBytes returns the number of bytes appendable before a grow.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writerIndex }

// PrependableBytes returns the space available for cheap-prepend writes.
func (b *Buffer) PrependableBytes() int { return b.readerIndex }

// Peek returns the readable region without consuming it.
func (b *Buffer) Peek() []byte { return b.buf[b.readerIndex:b.writerIndex] }

// Retrieve advances the reader index by n, wrapping back to the
// cheap-prepend boundary once the buffer is fully drained (spec.md §4.1).
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.readerIndex += n
	} else {
		b.RetrieveAll()
	}
}

// RetrieveAll resets both indices to the cheap-prepend boundary.
func (b *Buffer) RetrieveAll() {
	b.readerIndex = PrependReserve
	b.writerIndex = PrependReserve
}

// RetrieveAllAsString consumes the full readable region and returns it.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// RetrieveAsString consumes n readable bytes and returns them as a new
// string (an owned copy, independent of the buffer's backing array).
func (b *Buffer) RetrieveAsString(n int) string {
	s := string(b.Peek()[:n])
	b.Retrieve(n)
	return s
}

// RetrieveBytes consumes n readable bytes and returns them as an owned
// []byte, the slice-flavored twin of RetrieveAsString.
func (b *Buffer) RetrieveBytes(n int) []byte {
	out := make([]byte, n)
	copy(out, b.Peek()[:n])
	b.Retrieve(n)
	return out
}

// EnsureWritable grows the buffer, by compaction or by reallocation, until
// at least n bytes are writable (spec.md §4.1).
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// Append copies data into the writable region, growing first if needed.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	copy(b.buf[b.writerIndex:], data)
	b.writerIndex += len(data)
}

// AppendString is the string-flavored Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// makeSpace grows the buffer per spec.md §4.1: compact in place when the
// combined writable+prependable room (minus the reserved prepend) already
// covers n, otherwise reallocate to exactly the size needed.
func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n+PrependReserve {
		grown := make([]byte, b.writerIndex+n)
		copy(grown, b.buf[:b.writerIndex])
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf[PrependReserve:], b.buf[b.readerIndex:b.writerIndex])
	b.readerIndex = PrependReserve
	b.writerIndex = b.readerIndex + readable
}

// ReadFd performs a scattered read from fd into the writable region, with a
// 64KiB stack overflow buffer absorbing bursts larger than the currently
// writable space in a single syscall (spec.md §4.1). It returns the number
// of bytes read and an error; 0, nil signals EOF, and -1, err signals a
// read failure — distinct outcomes the caller must not conflate (spec.md
// §4.6, grounded on original_source/buffer.hpp's std::expected<size_t,
// int> return, where an error and a value of 0 are different states).
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extra [overflowSize]byte
	writable := b.WritableBytes()
	var iov []unix.Iovec
	if writable > 0 {
		iov = append(iov, unix.Iovec{Base: &b.buf[b.writerIndex], Len: uint64(writable)})
	}
	if writable < len(extra) {
		iov = append(iov, unix.Iovec{Base: &extra[0], Len: uint64(len(extra))})
	}
	n, err := unix.Readv(fd, iov)
	if err != nil {
		return -1, err
	}
	if n <= writable {
		b.writerIndex += n
	} else {
		b.writerIndex = len(b.buf)
		b.Append(extra[:n-writable])
	}
	return n, nil
}

// WriteFd performs a single write of the readable region to fd; the caller
// inspects the byte count and calls Retrieve accordingly (spec.md §4.1).
func (b *Buffer) WriteFd(fd int) (int, error) {
	return unix.Write(fd, b.Peek())
}
