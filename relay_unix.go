// relay_unix.go - descriptor I/O for unixish platforms
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

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package fdrelay

import (
	"golang.org/x/sys/unix"
)

// read once from fd; EINTR is restarted and a non-blocking fd
// is waited on until it is readable.
func readFd(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if err = waitFd(fd, unix.POLLIN); err != nil {
				return 0, err
			}
			continue
		}
		return 0, err
	}
}

func writeFd(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Write(fd, b)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if err = waitFd(fd, unix.POLLOUT); err != nil {
				return 0, err
			}
			continue
		}
		return 0, err
	}
}

// block in poll(2) until 'fd' has one of the events in 'ev'.
// POLLERR and POLLHUP are left for the next read/write to report.
func waitFd(fd int, ev int16) error {
	pfd := []unix.PollFd{
		{Fd: int32(fd), Events: ev},
	}

	for {
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if pfd[0].Revents&unix.POLLNVAL != 0 {
			return unix.EBADF
		}
		return nil
	}
}

// RecvBufSize returns the SO_RCVBUF size of socket 'fd'. It is a
// diagnostic probe; Copy doesn't use it.
func RecvBufSize(fd int) (int, error) {
	n, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	if err != nil {
		return 0, &CopyError{"getsockopt", fd, -1, err}
	}
	return n, nil
}
