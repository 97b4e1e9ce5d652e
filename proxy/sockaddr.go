// sockaddr.go - raw sockaddr decoding
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

package proxy

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const _AF_INET = 2

// decode a struct sockaddr_in in host layout: 2 bytes of family
// (native order), 2 bytes of port and 4 bytes of address (network
// order).
func parseSockaddrIn(b [16]byte) (netip.AddrPort, error) {
	fam := binary.NativeEndian.Uint16(b[0:2])
	if fam != _AF_INET {
		return netip.AddrPort{}, fmt.Errorf("unsupported address family %d", fam)
	}

	port := binary.BigEndian.Uint16(b[2:4])
	ip := netip.AddrFrom4([4]byte(b[4:8]))
	return netip.AddrPortFrom(ip, port), nil
}
