// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package mbasub implements the Mixed Boolean-Arithmetic substitution
// pass: it rewrites add/sub/xor/mul/or instructions into algebraically
// equivalent expressions built from bitwise and additive primitives,
// picking uniformly among several identities per opcode.
package mbasub

import (
	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/prngsvc"
)

// identity computes a replacement value for op using b, equivalent to
// op's result but built from other primitives.
type identity func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value

var subIdentities = []identity{
	// x - y = (x XOR -y) + 2*(x AND -y)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		x, y := op.Operands[0], op.Operands[1]
		negY := b.CreateNeg(y, "")
		two := ir.NewConstantInt(x.ValueType(), 2)
		return b.CreateAdd(
			b.CreateXor(x, negY, ""),
			b.CreateMul(two, b.CreateAnd(x, negY, ""), ""),
			"")
	},
}

var addIdentities = []identity{
	// x + y = NOT(x + (-x + (-x + NOT y)))
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		x, y := op.Operands[0], op.Operands[1]
		negX1 := b.CreateNeg(x, "")
		notY := b.CreateNot(y, "")
		inner := b.CreateAdd(negX1, notY, "")
		negX2 := b.CreateNeg(x, "")
		outer := b.CreateAdd(negX2, inner, "")
		return b.CreateNot(b.CreateAdd(x, outer, ""), "")
	},
	// r = rand(); c = y + r; a = x + c; a = a - r
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		x, y := op.Operands[0], op.Operands[1]
		r := ir.NewConstantInt(x.ValueType(), randAddR(rnd))
		c := b.CreateAdd(y, r, "")
		a := b.CreateAdd(x, c, "")
		return b.CreateSub(a, r, "")
	},
}

var xorIdentities = []identity{
	// a ^ b = (~a & b) | (a & ~b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		return b.CreateOr(
			b.CreateAnd(b.CreateNot(a, ""), bb, ""),
			b.CreateAnd(a, b.CreateNot(bb, ""), ""),
			"")
	},
	// a ^ b = (a | b) & NOT(a & b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		return b.CreateAnd(
			b.CreateOr(a, bb, ""),
			b.CreateNot(b.CreateAnd(a, bb, ""), ""),
			"")
	},
	// a ^ b = (a + b) - 2*(a & b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		two := ir.NewConstantInt(a.ValueType(), 2)
		return b.CreateSub(
			b.CreateAdd(a, bb, ""),
			b.CreateMul(two, b.CreateAnd(a, bb, ""), ""),
			"")
	},
	// a ^ b = NOT(NOT a AND NOT b) AND NOT(a AND b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		return b.CreateAnd(
			b.CreateNot(b.CreateAnd(b.CreateNot(a, ""), b.CreateNot(bb, ""), ""), ""),
			b.CreateNot(b.CreateAnd(a, bb, ""), ""),
			"")
	},
}

var mulIdentities = []identity{
	// b*c = ((b OR c)*(b AND c)) + ((b AND NOT c)*(c AND NOT b))
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		x, y := op.Operands[0], op.Operands[1]
		return b.CreateAdd(
			b.CreateMul(b.CreateOr(x, y, ""), b.CreateAnd(x, y, ""), ""),
			b.CreateMul(
				b.CreateAnd(x, b.CreateNot(y, ""), ""),
				b.CreateAnd(y, b.CreateNot(x, ""), ""),
				""),
			"")
	},
}

var orIdentities = []identity{
	// a | b = NOT(NOT a AND NOT b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		return b.CreateNot(b.CreateAnd(b.CreateNot(a, ""), b.CreateNot(bb, ""), ""), "")
	},
	// a | b = a XOR b XOR (a AND b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		return b.CreateXor(a, b.CreateXor(bb, b.CreateAnd(a, bb, ""), ""), "")
	},
	// a | b = (a + b) - (a AND b)
	func(b *ir.Builder, op *ir.Instruction, rnd prngsvc.Service) ir.Value {
		a, bb := op.Operands[0], op.Operands[1]
		return b.CreateSub(b.CreateAdd(a, bb, ""), b.CreateAnd(a, bb, ""), "")
	},
}

func identitiesFor(op ir.Opcode) []identity {
	switch op {
	case ir.OpSub:
		return subIdentities
	case ir.OpAdd:
		return addIdentities
	case ir.OpXor:
		return xorIdentities
	case ir.OpMul:
		return mulIdentities
	case ir.OpOr:
		return orIdentities
	default:
		return nil
	}
}

// randAddR draws R uniformly from [0, 2^64 - 2] for the randomized add
// identity, via prngsvc.IntRanged's rejection sampling: the single
// excluded draw (2^64 - 1) is redrawn, not folded onto an existing
// value, so every value in range keeps equal probability.
func randAddR(rnd prngsvc.Service) uint64 {
	return prngsvc.IntRanged[uint64](rnd, 0, ^uint64(0)-1)
}

// Pass implements passreg.Pass for the MBASub substitution.
type Pass struct {
	Rand prngsvc.Service
}

// New returns a Pass drawing from rnd, or prngsvc.Default if rnd is nil.
func New(rnd prngsvc.Service) *Pass {
	if rnd == nil {
		rnd = prngsvc.Default
	}
	return &Pass{Rand: rnd}
}

// RunOnFunction runs the substitution for options["PassIterations"]
// iterations (the only option this pass recognizes).
func (p *Pass) RunOnFunction(fn *ir.Function, options map[string]int32) error {
	iterations := int(options["PassIterations"])
	for i := 0; i < iterations; i++ {
		p.obfuscateFunction(fn)
	}
	return nil
}

func (p *Pass) obfuscateFunction(fn *ir.Function) {
	for _, bb := range fn.Blocks {
		p.runOnBasicBlock(bb)
	}
}

// runOnBasicBlock rewrites each opcode of interest in turn. Candidates
// for every opcode are taken from the block's instructions as they stood
// before any replacement was emitted, so replacements created in this
// iteration are never revisited until the next one.
func (p *Pass) runOnBasicBlock(bb *ir.BasicBlock) {
	snapshot := append([]*ir.Instruction(nil), bb.Instructions...)
	for _, op := range []ir.Opcode{ir.OpMul, ir.OpSub, ir.OpAdd, ir.OpXor, ir.OpOr} {
		p.runOnOpcode(bb, snapshot, op)
	}
}

func (p *Pass) runOnOpcode(bb *ir.BasicBlock, snapshot []*ir.Instruction, op ir.Opcode) {
	identities := identitiesFor(op)
	if identities == nil {
		return
	}

	var targets []*ir.Instruction
	for _, inst := range snapshot {
		if inst.Op == op {
			targets = append(targets, inst)
		}
	}

	for _, inst := range targets {
		b := ir.NewBuilder(bb)
		b.SetInsertPointBefore(inst)
		choice := identities[prngsvc.IntRanged(p.Rand, 0, len(identities)-1)]
		replacement := choice(b, inst, p.Rand)
		inst.ReplaceAllUsesWith(replacement)
	}
}
