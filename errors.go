// errors.go - descriptive errors for fdrelay
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

package fdrelay

import (
	"errors"
	"fmt"
)

// CopyError represents the errors returned by Copy and RecvBufSize.
// Op is "read" when the source failed and "write" when the
// destination failed; Err is the underlying syscall error and is
// not interpreted any further.
type CopyError struct {
	Op  string
	Src int
	Dst int
	Err error
}

// Error returns a string representation of CopyError
func (e *CopyError) Error() string {
	return fmt.Sprintf("fdrelay: %s fd %d -> fd %d: %s",
		e.Op, e.Src, e.Dst, e.Err.Error())
}

// Unwrap returns the underlying wrapped error
func (e *CopyError) Unwrap() error {
	return e.Err
}

// IsReadError returns true if 'err' came from a failed read
// of the source descriptor.
func IsReadError(err error) bool {
	return isOp(err, "read")
}

// IsWriteError returns true if 'err' came from a failed write
// to the destination descriptor.
func IsWriteError(err error) bool {
	return isOp(err, "write")
}

func isOp(err error, op string) bool {
	var ce *CopyError
	if errors.As(err, &ce) {
		return ce.Op == op
	}
	return false
}

var _ error = &CopyError{}
