// main.go - transparent HTTP/HTTPS proxy daemon
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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	flag "github.com/opencoff/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opencoff/go-fdrelay/proxy"
)

var Z = path.Base(os.Args[0])

func main() {
	var help, debug, ipt bool
	var httpPort, httpsPort uint16
	var maxConns int
	var upstream, bind, exclude string
	var timeout time.Duration

	fs := flag.NewFlagSet(Z, flag.ExitOnError)

	fs.BoolVarP(&help, "help", "h", false, "Show help and exit [False]")
	fs.BoolVarP(&debug, "debug", "d", false, "Log debug messages [False]")
	fs.BoolVarP(&ipt, "iptables", "", false, "Install iptables redirect rules [False]")
	fs.Uint16VarP(&httpPort, "http-port", "", 80, "Redirect HTTP on port `P` [80]")
	fs.Uint16VarP(&httpsPort, "https-port", "", 443, "Redirect HTTPS on port `P` [443]")
	fs.StringVarP(&bind, "bind", "b", "0.0.0.0", "Listen on address `A` [0.0.0.0]")
	fs.StringVarP(&upstream, "upstream", "u", proxy.DefaultUpstream, "Use `A` as the upstream HTTP proxy")
	fs.IntVarP(&maxConns, "max-conns", "c", 0, "Allow at most `N` sessions per listener [64 per cpu]")
	fs.DurationVarP(&timeout, "timeout", "t", proxy.DefaultDialTimeout, "Upstream dial and handshake timeout")
	fs.StringVarP(&exclude, "exclude", "x", strings.Join(proxy.DefaultExclude, ","),
		"Never redirect destinations in the comma separated CIDR list `L`")

	fs.SetOutput(os.Stdout)

	err := fs.Parse(os.Args[1:])
	if err != nil {
		Die("%s", err)
	}

	if help {
		usage(fs)
	}

	log, err := newLogger(debug)
	if err != nil {
		Die("%s", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ipt {
		rules, err := proxy.NewRules([]uint16{httpPort, httpsPort}, strings.Split(exclude, ","))
		if err != nil {
			Die("%s", err)
		}

		if err = rules.Apply(ctx, proxy.ExecRunner); err != nil {
			Die("%s", err)
		}

		// the listeners are gone by the time we get here
		defer func() {
			if err := proxy.Flush(context.Background(), proxy.ExecRunner); err != nil {
				log.Error("can't flush iptables rules", zap.Error(err))
			}
		}()
	}

	listeners := []struct {
		port   uint16
		method proxy.Method
	}{
		{httpPort, proxy.MethodHTTP},
		{httpsPort, proxy.MethodConnect},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		s, err := proxy.New(proxy.Config{
			Listen:      fmt.Sprintf("%s:%d", bind, l.port),
			Upstream:    upstream,
			Method:      l.method,
			MaxConns:    maxConns,
			DialTimeout: timeout,
			Logger:      log,
		})
		if err != nil {
			Die("%s", err)
		}

		g.Go(func() error {
			return s.ListenAndServe(gctx)
		})
	}

	if err = g.Wait(); err != nil {
		log.Error("proxy failed", zap.Error(err))
		return
	}
	log.Info("shutdown complete")
}

func usage(fs *flag.FlagSet) {
	fmt.Printf(usageStr, Z, Z)
	fs.PrintDefaults()
	os.Exit(1)
}

// Die prints an error message to stderr and exits
func Die(f string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", Z, f)
	s := fmt.Sprintf(z, v...)
	if n := len(s); s[n-1] != '\n' {
		s += "\n"
	}

	os.Stderr.WriteString(s)
	os.Exit(1)
}

var usageStr = `%s - transparent proxy for outbound HTTP and HTTPS.

Connections redirected to this host by netfilter (see --iptables) are
handed to an upstream HTTP proxy: HTTPS via CONNECT and plain HTTP by
rewriting the request URI into absolute form.

Usage: %s [options]

Options:
`
