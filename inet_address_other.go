//go:build !linux

package reactor

// inetAddressFromSockaddr and toSockaddr only have meaning against the
// linux sockaddr types; this reactor core is linux-only (spec.md §1
// Non-goals), so non-linux builds keep a same-shaped stub purely so
// inet_address_test.go's round-trip test still links.
type stubSockaddr struct {
	ip   [4]byte
	port int
}

func inetAddressFromSockaddr(sa *stubSockaddr) InetAddress {
	if sa == nil {
		return InetAddress{}
	}
	return InetAddress{ip: append([]byte(nil), sa.ip[:]...), port: uint16(sa.port)}
}

func (a InetAddress) toSockaddr() *stubSockaddr {
	var out stubSockaddr
	copy(out.ip[:], a.ip.To4())
	out.port = int(a.port)
	return &out
}
