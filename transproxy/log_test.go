// log_test.go -- logger setup tests
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
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	log, err := newLogger(false)
	if err != nil {
		t.Fatalf("logger: %s", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug enabled without --debug")
	}

	log, err = newLogger(true)
	if err != nil {
		t.Fatalf("logger: %s", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug disabled with --debug")
	}
}
