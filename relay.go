// relay.go - one-directional byte relay between two descriptors
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

// Package fdrelay copies bytes from one open descriptor to another
// until end-of-stream or an unrecoverable error. It is a leaf
// primitive: the caller owns both descriptors, decides when to relay
// and runs one Copy per direction of a duplex connection.
package fdrelay

import (
	"io"
)

// BufSize is the capacity of the per-call transfer buffer.
const BufSize = 4096

// Copy reads from 'src' and writes everything it read to 'dst' until
// 'src' reports end-of-stream or either side fails. Short writes are
// continued from the right offset; a failed write ends the relay and
// the unwritten part of the current buffer is dropped.
//
// Copy returns the number of bytes written to 'dst'. The error is nil
// when 'src' ended cleanly; otherwise it is a *CopyError whose Op is
// "read" or "write" and which wraps the syscall error.
//
// Copy never closes, dups or otherwise touches the lifecycle of 'src'
// or 'dst'. It holds no locks; blocking reads and writes park only the
// calling goroutine. Concurrent calls must use distinct descriptor
// pairs.
func Copy(dst, src int) (int64, error) {
	var buf [BufSize]byte
	var z int64

	for {
		n, err := readFd(src, buf[:])
		if err != nil {
			return z, &CopyError{"read", src, dst, err}
		}
		if n == 0 {
			return z, nil
		}

		b := buf[:n]
		for len(b) > 0 {
			m, err := writeFd(dst, b)
			if err != nil {
				return z, &CopyError{"write", src, dst, err}
			}
			if m == 0 {
				return z, &CopyError{"write", src, dst, io.ErrShortWrite}
			}
			b = b[m:]
			z += int64(m)
		}
	}
}

// Status maps the error returned by Copy to the integer status of the
// raw read/write loop: 0 for a clean end-of-stream and -1 when the
// relay stopped on a read or write failure.
func Status(err error) int {
	if err == nil {
		return 0
	}
	return -1
}
