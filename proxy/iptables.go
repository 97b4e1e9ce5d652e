// iptables.go - netfilter rules that redirect outbound TCP to the proxy
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
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultExclude are destinations that are never redirected
var DefaultExclude = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
}

// Runner runs one iptables invocation
type Runner func(ctx context.Context, args ...string) error

// ExecRunner runs the iptables binary
func ExecRunner(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "iptables", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("iptables %s: %w: %s", strings.Join(args, " "), err,
			strings.TrimSpace(string(out)))
	}
	return nil
}

// Rules redirects locally generated TCP traffic for Ports to the
// proxy listening on the same port of 127.0.0.1. Traffic to the
// Exclude prefixes is left alone.
type Rules struct {
	Ports   []uint16
	Exclude []netip.Prefix
}

// NewRules makes Rules from textual CIDR prefixes
func NewRules(ports []uint16, exclude []string) (*Rules, error) {
	r := &Rules{
		Ports:   ports,
		Exclude: make([]netip.Prefix, 0, len(exclude)),
	}

	for _, s := range exclude {
		s = strings.TrimSpace(s)
		if len(s) == 0 {
			continue
		}

		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("iptables: exclude %s: %w", s, err)
		}
		r.Exclude = append(r.Exclude, p.Masked())
	}
	return r, nil
}

// Commands returns the iptables argument lists that install the
// rules, in order. The nat OUTPUT chain is flushed first.
func (r *Rules) Commands() [][]string {
	cmds := [][]string{flushArgs()}

	for _, p := range r.Exclude {
		cmds = append(cmds, []string{
			"-t", "nat", "-A", "OUTPUT",
			"--destination", p.String(),
			"-j", "ACCEPT",
		})
	}

	for _, port := range r.Ports {
		cmds = append(cmds, []string{
			"-t", "nat", "-A", "OUTPUT",
			"-p", "tcp", "--dport", strconv.Itoa(int(port)),
			"-j", "DNAT", "--to-destination", "127.0.0.1",
		})
	}
	return cmds
}

// Apply installs the rules with 'run'; on failure the chain
// is flushed again.
func (r *Rules) Apply(ctx context.Context, run Runner) error {
	for _, args := range r.Commands() {
		if err := run(ctx, args...); err != nil {
			run(ctx, flushArgs()...)
			return err
		}
	}
	return nil
}

// Flush removes every rule from the nat OUTPUT chain
func Flush(ctx context.Context, run Runner) error {
	return run(ctx, flushArgs()...)
}

func flushArgs() []string {
	return []string{"-t", "nat", "-F", "OUTPUT"}
}
