//go:build linux

package netpoll

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventFdNew(t *testing.T) {
	efd, err := NewEventFd()
	require.NoError(t, err)
	defer efd.Close()

	require.GreaterOrEqual(t, efd.Fd(), 0)
}

func TestEventFdReadWrite(t *testing.T) {
	efd, err := NewEventFd()
	require.NoError(t, err)
	defer efd.Close()

	const want uint64 = 0x78
	require.NoError(t, efd.WriteEvent(want))

	got, err := efd.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEventFdAccumulates(t *testing.T) {
	efd, err := NewEventFd()
	require.NoError(t, err)
	defer efd.Close()

	require.NoError(t, efd.WriteEvent(1))
	require.NoError(t, efd.WriteEvent(2))

	got, err := efd.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, uint64(3), got)
}

func BenchmarkEventFdReadWrite(b *testing.B) {
	const event = 15
	efd, err := NewEventFd()
	if err != nil {
		b.Fatal(err)
	}
	defer efd.Close()

	for i := 0; i < b.N; i++ {
		if err := efd.WriteEvent(event); err != nil {
			b.Fatal(err)
		}
		if val, err := efd.ReadEvent(); err != nil {
			b.Fatal(err)
		} else if val != event {
			b.Fail()
		}
	}
}
