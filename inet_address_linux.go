//go:build linux

package reactor

import (
	"net"

	"golang.org/x/sys/unix"
)

// inetAddressFromSockaddr recovers an InetAddress from a raw sockaddr, used
// after accept4/getsockname (spec.md §4.5, §4.8).
func inetAddressFromSockaddr(sa unix.Sockaddr) InetAddress {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return InetAddress{ip: net.IP(a.Addr[:]), port: uint16(a.Port)}
	default:
		return InetAddress{}
	}
}

func (a InetAddress) toSockaddr() *unix.SockaddrInet4 {
	var out unix.SockaddrInet4
	copy(out.Addr[:], a.ip.To4())
	out.Port = int(a.port)
	return &out
}
