// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package cfg provides minimal stand-ins for the control-flow-shuffling
// passes String-Encryption schedules onto its generated decrypt
// constructor: BasicBlockSplitter, IndirectBranch, and
// SimpleIndirectBranch. These passes are out-of-scope collaborators —
// String-Encryption only needs to be able to register them by code name
// so the scheduler resolves something runnable; their own CFG-mangling
// behavior is not part of this engine's core.
//
// BasicBlockSplitter performs a small block split; IndirectBranch and
// SimpleIndirectBranch make no change at all. Registering any of them on
// __decrypt_ctor (or any function) is harmless and leaves the function's
// behavior observably unchanged.
package cfg

import (
	"github.com/zyroxobf/zyrox/internal/ir"
)

// BasicBlockSplitter splits each block roughly in half, once per
// iteration, at its middle instruction (index len/2); a block whose
// middle instruction is its terminator (any block of two or fewer
// instructions) is left as it is. It mirrors its namesake's effect
// on block count without attempting any of the real pass's randomized
// split-point selection or bogus-block insertion.
type BasicBlockSplitter struct{}

func (BasicBlockSplitter) RunOnFunction(fn *ir.Function, options map[string]int32) error {
	iterations := int(options["PassIterations"])
	for i := 0; i < iterations; i++ {
		for _, bb := range append([]*ir.BasicBlock(nil), fn.Blocks...) {
			if len(bb.Instructions) < 2 {
				continue
			}
			mid := bb.Instructions[len(bb.Instructions)/2]
			if mid.IsTerminator() {
				continue
			}
			bb.Split(mid, bb.Name+".split")
		}
	}
	return nil
}

// IndirectBranch and SimpleIndirectBranch, in the original engine,
// rewrite direct branches into a load from a jump table. That transform
// requires host-toolkit support this module doesn't model (indirect
// branch instructions, blockaddress constants); registering either here
// is a structural no-op, which keeps the function's semantics and
// control flow exactly as String-Encryption or the scheduler left them.
type IndirectBranch struct{}

func (IndirectBranch) RunOnFunction(fn *ir.Function, options map[string]int32) error {
	return nil
}

type SimpleIndirectBranch struct{}

func (SimpleIndirectBranch) RunOnFunction(fn *ir.Function, options map[string]int32) error {
	return nil
}
