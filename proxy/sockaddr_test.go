// sockaddr_test.go -- sockaddr decoding tests
//
// (c) 2024- Sudhi Herle <sudhi@herle.net>
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
	"testing"
)

func TestParseSockaddrIn(t *testing.T) {
	assert := newAsserter(t)

	var b [16]byte
	binary.NativeEndian.PutUint16(b[0:2], _AF_INET)
	binary.BigEndian.PutUint16(b[2:4], 8443)
	copy(b[4:8], []byte{93, 184, 216, 34})

	ap, err := parseSockaddrIn(b)
	assert(err == nil, "parse: %s", err)
	assert(ap.String() == "93.184.216.34:8443", "parse: saw %s", ap)

	binary.NativeEndian.PutUint16(b[0:2], 10)
	_, err = parseSockaddrIn(b)
	assert(err != nil, "parse: accepted AF_INET6")
}
