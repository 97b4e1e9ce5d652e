// iptables_test.go -- netfilter rule construction tests
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

package proxy

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestRulesCommands(t *testing.T) {
	assert := newAsserter(t)

	r, err := NewRules([]uint16{80, 443}, []string{"10.1.2.3/8", " 192.168.0.0/16", ""})
	assert(err == nil, "rules: %s", err)

	exp := []string{
		"-t nat -F OUTPUT",
		"-t nat -A OUTPUT --destination 10.0.0.0/8 -j ACCEPT",
		"-t nat -A OUTPUT --destination 192.168.0.0/16 -j ACCEPT",
		"-t nat -A OUTPUT -p tcp --dport 80 -j DNAT --to-destination 127.0.0.1",
		"-t nat -A OUTPUT -p tcp --dport 443 -j DNAT --to-destination 127.0.0.1",
	}

	cmds := r.Commands()
	assert(len(cmds) == len(exp), "commands: exp %d, saw %d", len(exp), len(cmds))
	for i := range cmds {
		s := strings.Join(cmds[i], " ")
		assert(s == exp[i], "cmd %d:\nexp %s\nsaw %s", i, exp[i], s)
	}
}

func TestRulesBadPrefix(t *testing.T) {
	assert := newAsserter(t)

	_, err := NewRules([]uint16{80}, []string{"10.0.0.0/33"})
	assert(err != nil, "accepted an invalid prefix")
}

func TestRulesApply(t *testing.T) {
	assert := newAsserter(t)

	r, err := NewRules([]uint16{80}, DefaultExclude)
	assert(err == nil, "rules: %s", err)

	var ran [][]string
	run := func(_ context.Context, args ...string) error {
		ran = append(ran, args)
		return nil
	}

	err = r.Apply(context.Background(), run)
	assert(err == nil, "apply: %s", err)
	assert(len(ran) == 2+len(DefaultExclude), "apply: ran %d commands", len(ran))

	// a failure flushes what was installed
	ran = ran[:0]
	boom := errors.New("boom")
	run = func(_ context.Context, args ...string) error {
		ran = append(ran, args)
		if slices.Contains(args, "DNAT") {
			return boom
		}
		return nil
	}

	err = r.Apply(context.Background(), run)
	assert(errors.Is(err, boom), "apply: exp boom, saw %v", err)

	last := ran[len(ran)-1]
	assert(slices.Equal(last, flushArgs()), "apply: no flush after failure: %v", last)
}
