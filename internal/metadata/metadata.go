// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package metadata is the process-wide store of pass records: the
// scripting bridge writes records here while it runs each function's
// RunOnFunction callback, and the scheduler reads them back, in order,
// to replay the recorded passes. Writes and reads never interleave: all
// registration happens before any replay begins.
package metadata

import (
	"sync"

	"github.com/zyroxobf/zyrox/internal/ir"
)

// Record is a single scheduled pass invocation: a pass's code name plus
// the option map the script supplied when it called RegisterPass.
// Options are signed 32-bit integers; PassIterations is the only option
// every pass recognizes, but a pass may read further pass-specific keys.
type Record struct {
	CodeName string
	Options  map[string]int32
}

// Iterations returns the record's PassIterations option, or 0 if absent.
func (r Record) Iterations() int32 {
	return r.Options["PassIterations"]
}

// Store holds the ordered list of pass records per function, keyed by
// function pointer identity so two functions sharing a name (or an
// unnamed/anonymous function) never collide.
type Store struct {
	mu      sync.Mutex
	records map[*ir.Function][]Record
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{records: map[*ir.Function][]Record{}}
}

// AddPass appends a record to fn's list, in call order.
func (s *Store) AddPass(fn *ir.Function, codeName string, options map[string]int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[fn] = append(s.records[fn], Record{CodeName: codeName, Options: options})
}

// Records returns fn's recorded passes, in the order they were added. The
// returned slice must not be mutated by the caller.
func (s *Store) Records(fn *ir.Function) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[fn]
}
