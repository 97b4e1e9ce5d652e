// errors.go - descriptive errors for fdrelay/proxy
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
	"errors"
	"fmt"
)

// Error represents the errors returned while setting up
// or relaying a proxied session.
type Error struct {
	Op   string
	Addr string
	Err  error
}

// Error returns a string representation of Error
func (e *Error) Error() string {
	return fmt.Sprintf("proxy: %s '%s': %s",
		e.Op, e.Addr, e.Err.Error())
}

// Unwrap returns the underlying wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrRejected is returned when the upstream proxy refuses a CONNECT
	ErrRejected = errors.New("upstream rejected tunnel")

	// ErrBadRequest is returned when a redirected HTTP client doesn't
	// start with a request method
	ErrBadRequest = errors.New("malformed request line")

	errPoolClosed = errors.New("proxy: worker pool closed")
)

var _ error = &Error{}
