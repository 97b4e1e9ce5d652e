// origdst_other.go - SO_ORIGINAL_DST is Linux only
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

//go:build !linux

package proxy

import (
	"errors"
	"net"
	"net/netip"
)

// OrigDst returns the destination a client originally connected to
// before it was redirected. It needs netfilter and always fails here.
func OrigDst(c *net.TCPConn) (netip.AddrPort, error) {
	return netip.AddrPort{}, &Error{"origdst", c.RemoteAddr().String(), errors.ErrUnsupported}
}
