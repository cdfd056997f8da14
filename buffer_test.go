package reactor

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferInitialInvariants(t *testing.T) {
	b := NewBuffer()
	require.Equal(t, 0, b.ReadableBytes())
	require.Equal(t, initialBufferSize, b.WritableBytes())
	require.Equal(t, PrependReserve, b.PrependableBytes())
}

func TestBufferAppendRetrieveRoundTrip(t *testing.T) {
	b := NewBuffer()
	data := []byte("hello reactor")
	b.Append(data)
	require.Equal(t, len(data), b.ReadableBytes())
	require.Equal(t, string(data), b.RetrieveAsString(len(data)))
	require.Equal(t, 0, b.ReadableBytes())
	require.Equal(t, PrependReserve, b.PrependableBytes())
}

func TestBufferRetrieveAllResetsToPrependBoundary(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte("abc"))
	b.Retrieve(b.ReadableBytes())
	require.Equal(t, 0, b.ReadableBytes())
	require.Equal(t, PrependReserve, b.PrependableBytes())
}

func TestBufferGrowByCompaction(t *testing.T) {
	b := NewBuffer()
	// Fill most of the capacity, then retrieve all but a tail so the
	// reader index advances without resetting (readable > 0 keeps Retrieve
	// from taking the RetrieveAll shortcut), leaving little writable space
	// but plenty of prependable space freed up behind the reader.
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	b.Append(payload)
	b.Retrieve(900)
	tail := append([]byte(nil), b.Peek()...) // the 100 remaining bytes

	// 50 bytes exceed the 24 writable bytes left, so Append must compact.
	extra := []byte(strings.Repeat("compact-me", 5))
	before := &b.buf[0]
	b.Append(extra)
	require.Same(t, before, &b.buf[0], "compaction must reuse the backing array")

	want := append(tail, extra...)
	require.Equal(t, want, b.Peek())
}

func TestBufferGrowByReallocation(t *testing.T) {
	b := NewBuffer()
	payload := strings.Repeat("x", initialBufferSize*2)
	b.Append([]byte(payload))
	require.Equal(t, payload, b.RetrieveAllAsString())
}

func TestBufferGrowPreservesReadableContentBitwise(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte("preserve-me"))
	b.Append(make([]byte, initialBufferSize*4)) // forces reallocation
	require.Equal(t, "preserve-me", string(b.Peek()[:len("preserve-me")]))
}

func TestBufferReadFdScatteredOverflow(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	payload := make([]byte, 70*1024) // > 64KiB overflow + > 1KiB writable
	for i := range payload {
		payload[i] = byte(i)
	}
	go func() {
		_, _ = w.Write(payload)
		w.Close()
	}()

	b := NewBuffer() // writable starts at 1KiB, forcing the overflow path
	total := 0
	for total < len(payload) {
		n, err := b.ReadFd(int(r.Fd()))
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total += n
	}
	require.Equal(t, len(payload), total)
	require.Equal(t, payload, b.Peek()[:total])
}

func TestBufferWriteFd(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	b := NewBuffer()
	b.Append([]byte("ping"))
	n, err := b.WriteFd(int(w.Fd()))
	require.NoError(t, err)
	b.Retrieve(n)

	out := make([]byte, 4)
	_, err = r.Read(out)
	require.NoError(t, err)
	require.Equal(t, "ping", string(out))
}
