// config.go - transparent proxy configuration
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
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Method is the way a redirected connection is handed to the
// upstream HTTP proxy.
type Method string

const (
	// MethodConnect tunnels the connection with an HTTP CONNECT
	MethodConnect Method = "connect"

	// MethodHTTP rewrites the request URI of a plain HTTP request
	// into absolute form.
	MethodHTTP Method = "http"
)

const (
	DefaultUpstream    = "127.0.0.1:3128"
	DefaultDialTimeout = 30 * time.Second
)

// Config describes one listener of the transparent proxy.
type Config struct {
	// Listen is the local address for redirected connections
	Listen string

	// Upstream is the address of the HTTP proxy
	Upstream string

	Method Method

	// MaxConns bounds the number of concurrent sessions; when
	// zero, it defaults to 64 per cpu.
	MaxConns int

	// DialTimeout bounds the upstream dial and the proxy handshake
	DialTimeout time.Duration

	Logger *zap.Logger
}

func (c *Config) validate() error {
	switch c.Method {
	case MethodConnect, MethodHTTP:
	case "":
		c.Method = MethodConnect
	default:
		return fmt.Errorf("proxy: unknown method %q", c.Method)
	}

	if len(c.Listen) == 0 {
		return fmt.Errorf("proxy: no listen address")
	}
	if len(c.Upstream) == 0 {
		c.Upstream = DefaultUpstream
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 64 * runtime.NumCPU()
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
