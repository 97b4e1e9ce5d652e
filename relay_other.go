// relay_other.go - descriptor relay on unsupported platforms
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

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package fdrelay

import (
	"errors"
)

func readFd(fd int, b []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func writeFd(fd int, b []byte) (int, error) {
	return 0, errors.ErrUnsupported
}

// RecvBufSize returns the SO_RCVBUF size of socket 'fd'.
func RecvBufSize(fd int) (int, error) {
	return 0, &CopyError{"getsockopt", fd, -1, errors.ErrUnsupported}
}
