// origdst_linux.go - recover the pre-NAT destination of a redirected connection
//
// (c) 2024 Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build linux

package proxy

import (
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// OrigDst returns the destination a client originally connected to
// before netfilter redirected it to us. Only IPv4 is supported.
func OrigDst(c *net.TCPConn) (netip.AddrPort, error) {
	var ap netip.AddrPort

	rc, err := c.SyscallConn()
	if err != nil {
		return ap, &Error{"origdst", c.RemoteAddr().String(), err}
	}

	var serr error
	err = rc.Control(func(fd uintptr) {
		// getsockopt(SO_ORIGINAL_DST) fills a sockaddr_in; IPv6Mreq
		// is the x/sys wrapper with a large enough buffer.
		var m *unix.IPv6Mreq
		m, serr = unix.GetsockoptIPv6Mreq(int(fd), unix.IPPROTO_IP, unix.SO_ORIGINAL_DST)
		if serr == nil {
			ap, serr = parseSockaddrIn(m.Multiaddr)
		}
	})
	if err == nil {
		err = serr
	}
	if err != nil {
		return ap, &Error{"origdst", c.RemoteAddr().String(), err}
	}
	return ap, nil
}
