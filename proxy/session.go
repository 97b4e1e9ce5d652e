// session.go - one proxied connection: handshake and duplex relay
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

//go:build unix

package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/opencoff/go-fdrelay"
)

// longest request method we accept from a redirected HTTP client
const _MaxVerb = 16

type session struct {
	id    uint64
	src   string
	dst   netip.AddrPort
	start time.Time

	// the relay works on detached, blocking copies of the
	// client and upstream sockets.
	cf, uf   *os.File
	cfd, ufd int

	// bytes relayed in each direction
	up, down atomic.Int64

	once sync.Once
}

// handshake prepares the upstream proxy to receive the client's
// bytes for 'dst'. Anything the upstream sent past its CONNECT
// response is returned so it can be delivered to the client first.
// The handshake ends early with a timeout error if 'ctx' is done.
func handshake(ctx context.Context, m Method, client, up net.Conn, dst netip.AddrPort, tmo time.Duration) ([]byte, error) {
	deadline := time.Now().Add(tmo)
	client.SetDeadline(deadline)
	up.SetDeadline(deadline)

	// registered after the deadlines above so that it always wins
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		client.SetDeadline(now)
		up.SetDeadline(now)
	})

	defer func() {
		stop()
		client.SetDeadline(time.Time{})
		up.SetDeadline(time.Time{})
	}()

	switch m {
	case MethodConnect:
		return connectUpstream(up, dst)
	case MethodHTTP:
		return nil, rewriteRequest(client, up, dst)
	}
	return nil, fmt.Errorf("unknown method %q", m)
}

// open a CONNECT tunnel to 'dst' through the upstream proxy
func connectUpstream(up net.Conn, dst netip.AddrPort) ([]byte, error) {
	host := dst.String()
	_, err := fmt.Fprintf(up, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", host, host)
	if err != nil {
		return nil, err
	}

	rd := bufio.NewReader(up)
	resp, err := http.ReadResponse(rd, &http.Request{Method: http.MethodConnect})
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s: %w: %s", host, ErrRejected, resp.Status)
	}

	if n := rd.Buffered(); n > 0 {
		b, _ := rd.Peek(n)
		return b, nil
	}
	return nil, nil
}

// forward the request method and inject the absolute URI prefix so
// that "GET /x HTTP/1.1" reaches the upstream as
// "GET http://dst/x HTTP/1.1". The client is read a byte at a time so
// that nothing beyond the method is consumed here.
func rewriteRequest(client, up net.Conn, dst netip.AddrPort) error {
	var verb [_MaxVerb + 1]byte

	n := 0
	for {
		if n == len(verb) {
			return fmt.Errorf("%w: method longer than %d bytes", ErrBadRequest, _MaxVerb)
		}

		m, err := client.Read(verb[n : n+1])
		if err != nil {
			return err
		}
		if m == 0 {
			continue
		}

		n++
		if verb[n-1] == ' ' {
			break
		}
	}

	if n == 1 {
		return fmt.Errorf("%w: empty method", ErrBadRequest)
	}

	host := dst.Addr().String()
	if dst.Port() != 80 {
		host = dst.String()
	}

	b := make([]byte, 0, n+len(host)+8)
	b = append(b, verb[:n]...)
	b = append(b, "http://"...)
	b = append(b, host...)

	_, err := up.Write(b)
	return err
}

// detach both connections into blocking descriptors for the relay
func newSession(id uint64, client, up *net.TCPConn, dst netip.AddrPort) (*session, error) {
	cf, err := client.File()
	if err != nil {
		return nil, &Error{"detach", client.RemoteAddr().String(), err}
	}

	uf, err := up.File()
	if err != nil {
		cf.Close()
		return nil, &Error{"detach", up.RemoteAddr().String(), err}
	}

	sn := &session{
		id:    id,
		src:   client.RemoteAddr().String(),
		dst:   dst,
		start: time.Now(),
		cf:    cf,
		uf:    uf,

		// Fd() also puts the descriptors in blocking mode
		cfd: int(cf.Fd()),
		ufd: int(uf.Fd()),
	}
	return sn, nil
}

// relay runs one fdrelay.Copy per direction and returns when both
// are done. A direction that ends cleanly half-closes its
// destination; one that fails tears the whole session down so the
// other direction's blocking read returns.
func (sn *session) relay() error {
	var g errgroup.Group

	g.Go(func() error {
		return sn.pump(&sn.up, sn.ufd, sn.cfd)
	})
	g.Go(func() error {
		return sn.pump(&sn.down, sn.cfd, sn.ufd)
	})
	return g.Wait()
}

func (sn *session) pump(ctr *atomic.Int64, dst, src int) error {
	n, err := fdrelay.Copy(dst, src)
	ctr.Add(n)
	if err != nil {
		sn.shutdown()
		return err
	}

	unix.Shutdown(dst, unix.SHUT_WR)
	return nil
}

// shutdown both sockets; every blocked read or write in the relay
// returns after this.
func (sn *session) shutdown() {
	sn.once.Do(func() {
		unix.Shutdown(sn.cfd, unix.SHUT_RDWR)
		unix.Shutdown(sn.ufd, unix.SHUT_RDWR)
	})
}

func (sn *session) close() {
	// no shutdown(2) once the descriptors are gone
	sn.once.Do(func() {})

	sn.cf.Close()
	sn.uf.Close()
}
