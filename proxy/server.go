// server.go - transparent proxy listener
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

// Package proxy is a transparent TCP proxy: connections that
// netfilter redirected to it are handed to an upstream HTTP proxy,
// and the bytes in each direction are moved by fdrelay.Copy.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/opencoff/go-utils"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/opencoff/go-fdrelay"
)

// Server accepts redirected connections on one listener.
type Server struct {
	cfg Config
	log *zap.Logger

	// live sessions by id
	sess   *xsync.MapOf[uint64, *session]
	nextID atomic.Uint64

	// origDst finds where a client was going; replaced in tests
	origDst func(c *net.TCPConn) (netip.AddrPort, error)
}

// New makes a new server from 'cfg'; missing fields get defaults.
func New(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("listen", cfg.Listen), zap.String("method", string(cfg.Method))),
		sess:    xsync.NewMapOf[uint64, *session](),
		origDst: OrigDst,
	}
	return s, nil
}

// Sessions returns the number of live sessions
func (s *Server) Sessions() int {
	return s.sess.Size()
}

// ListenAndServe listens on the configured address and serves until
// 'ctx' is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return &Error{"listen", s.cfg.Listen, err}
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on 'ln' until 'ctx' is done. It then
// closes 'ln', shuts down every live session and waits for the
// session workers to finish. Serve returns nil when it was stopped
// by 'ctx'.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	wp := newPool[*net.TCPConn](s.cfg.MaxConns, func(_ int, c *net.TCPConn) error {
		return s.handle(ctx, c)
	}, func(err error) {
		s.log.Warn("session failed", zap.Error(err))
	})

	stop := context.AfterFunc(ctx, func() {
		s.log.Info("shutting down listener")
		ln.Close()
		s.closeAll()
	})

	defer func() {
		stop()
		wp.Close()
		wp.Wait()
	}()

	s.log.Info("listening", zap.Stringer("addr", ln.Addr()), zap.String("upstream", s.cfg.Upstream))

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return &Error{"accept", ln.Addr().String(), err}
			}

			s.log.Warn("accept", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		tc, ok := c.(*net.TCPConn)
		if !ok {
			c.Close()
			continue
		}

		if err := wp.Submit(ctx, tc); err != nil {
			tc.Close()
			return nil
		}
	}
}

// handle one redirected client until both directions are done
func (s *Server) handle(ctx context.Context, c *net.TCPConn) error {
	defer c.Close()

	src := c.RemoteAddr().String()
	dst, err := s.origDst(c)
	if err != nil {
		return err
	}

	log := s.log.With(zap.String("src", src), zap.Stringer("dst", dst))
	log.Info("connecting")

	d := net.Dialer{Timeout: s.cfg.DialTimeout}
	uc, err := d.DialContext(ctx, "tcp", s.cfg.Upstream)
	if err != nil {
		return &Error{"dial", s.cfg.Upstream, err}
	}

	up := uc.(*net.TCPConn)
	defer up.Close()

	pending, err := handshake(ctx, s.cfg.Method, c, up, dst, s.cfg.DialTimeout)
	if err != nil {
		return &Error{"handshake", dst.String(), err}
	}

	if len(pending) > 0 {
		if _, err = c.Write(pending); err != nil {
			return &Error{"write", src, err}
		}
	}

	sn, err := newSession(s.nextID.Add(1), c, up, dst)
	if err != nil {
		return err
	}

	defer sn.close()

	if sz, err := fdrelay.RecvBufSize(sn.cfd); err == nil {
		log.Debug("client socket", zap.Int("rcvbuf", sz))
	}

	s.sess.Store(sn.id, sn)
	defer s.sess.Delete(sn.id)

	// we may have raced with closeAll()
	if ctx.Err() != nil {
		sn.shutdown()
	}

	err = sn.relay()
	s.log.Info("closed",
		zap.Uint64("session", sn.id),
		zap.String("src", sn.src),
		zap.Stringer("dst", sn.dst),
		zap.String("up", utils.HumanizeSize(uint64(sn.up.Load()))),
		zap.String("down", utils.HumanizeSize(uint64(sn.down.Load()))),
		zap.Int("status", fdrelay.Status(err)),
		zap.Duration("elapsed", time.Since(sn.start)))

	if err != nil {
		return &Error{"relay", dst.String(), err}
	}
	return nil
}

// shutdown every live session
func (s *Server) closeAll() {
	s.sess.Range(func(_ uint64, sn *session) bool {
		sn.shutdown()
		return true
	})
}
