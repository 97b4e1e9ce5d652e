// utils_test.go -- test harness utilities
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

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package fdrelay

import (
	crand "crypto/rand"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/opencoff/go-mmap"
)

var testDir = flag.String("testdir", "", "Use 'T' as the testdir for file I/O tests")

func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}

		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}

		s := fmt.Sprintf(msg, args...)
		t.Fatalf("\n%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

func getTmpdir(t *testing.T) string {
	assert := newAsserter(t)
	tmpdir := t.TempDir()

	if len(*testDir) > 0 {
		tmpdir = filepath.Join(*testDir, t.Name())
		err := os.MkdirAll(tmpdir, 0700)
		assert(err == nil, "mkdir %s: %s", tmpdir, err)
		t.Logf("Using %s as test dir .. \n", tmpdir)
		t.Cleanup(func() {
			t.Logf("cleaning up %s ..\n", tmpdir)
			os.RemoveAll(tmpdir)
		})
	}
	return tmpdir
}

// make a pipe whose ends are in blocking mode. Both ends are
// closed when the test ends; closing them earlier is fine.
func mkpipe(t *testing.T) (r, w *os.File) {
	assert := newAsserter(t)

	r, w, err := os.Pipe()
	assert(err == nil, "pipe: %s", err)

	// Fd() puts the descriptors back in blocking mode
	r.Fd()
	w.Fd()

	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func fdOf(fd *os.File) int {
	return int(fd.Fd())
}

// feed 'b' into 'w' from a separate goroutine and close 'w' when done.
// The returned chan yields the write error.
func feed(w *os.File, b []byte) chan error {
	ch := make(chan error, 1)
	go func() {
		_, err := w.Write(b)
		w.Close()
		ch <- err
	}()
	return ch
}

type drained struct {
	b   []byte
	err error
}

// drain 'r' until EOF from a separate goroutine.
func drain(r *os.File) chan drained {
	ch := make(chan drained, 1)
	go func() {
		var d drained
		buf := make([]byte, 8192)
		for {
			n, err := r.Read(buf)
			d.b = append(d.b, buf[:n]...)
			if err != nil {
				break
			}
		}
		ch <- d
	}()
	return ch
}

// sha256 of a file, read through a memory map
func fileCksum(nm string) ([]byte, error) {
	fd, err := os.Open(nm)
	if err != nil {
		return nil, err
	}

	defer fd.Close()
	h := sha256.New()
	_, err = mmap.Reader(fd, func(b []byte) error {
		h.Write(b)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// fill 'nm' with 'sz' random bytes and return their sha256
func mkRandFile(nm string, sz int) ([]byte, error) {
	b := randbuf(make([]byte, sz))
	if err := os.WriteFile(nm, b, 0600); err != nil {
		return nil, err
	}

	h := sha256.Sum256(b)
	return h[:], nil
}

func randbuf(b []byte) []byte {
	if _, err := crand.Read(b); err != nil {
		panic(fmt.Sprintf("can't read %d bytes of crypto/rand: %s", len(b), err))
	}
	return b
}
