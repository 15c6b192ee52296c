// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package main

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"

	"github.com/zyroxobf/zyrox/internal/prngsvc"
)

// prngsvcReader adapts prngsvc.Service to io.Reader, eight bytes at a
// time, so it can stand in for uuid.SetRand's entropy source the way
// the teacher's io.Reader-based Reader used to.
type prngsvcReader struct{ svc prngsvc.Service }

func (r prngsvcReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], r.svc.Uint64())
		n += copy(p[n:], buf[:])
	}
	return n, nil
}

// TestNewLoggerLevels confirms --log-level parses valid zap levels and
// rejects unrecognized ones.
func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := newLogger(level); err != nil {
			t.Fatalf("newLogger(%q) returned an error: %v", level, err)
		}
	}

	if _, err := newLogger("not-a-level"); err == nil {
		t.Fatal("newLogger with an invalid level should have returned an error")
	}
}

// TestRunIDsAreUnique confirms each invocation gets a distinct run ID,
// the one property runObfuscate's log correlation depends on.
func TestRunIDsAreUnique(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := uuid.NewString()
		if seen[id] {
			t.Fatalf("duplicate run ID generated: %s", id)
		}
		seen[id] = true
	}
}

// BenchmarkRunID_Default measures uuid.NewString() with the package
// default random source, the baseline this module's run-ID tagging uses.
func BenchmarkRunID_Default(b *testing.B) {
	uuid.SetRand(nil)
	b.ReportAllocs()
	for b.Loop() {
		_ = uuid.NewString()
	}
}

// BenchmarkRunID_CSPRNG measures uuid.NewString() seeded from this
// module's own PRNG service rather than uuid's default source, mirroring
// the teacher's CSPRNG-vs-default UUID benchmark pair.
func BenchmarkRunID_CSPRNG(b *testing.B) {
	uuid.SetRand(prngsvcReader{svc: prngsvc.Default})
	defer uuid.SetRand(nil)
	b.ReportAllocs()
	for b.Loop() {
		_ = uuid.NewString()
	}
}
