// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

// Opcode identifies an instruction's operation.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpXor
	OpOr
	OpAnd
	OpLShr // logical shift right
	OpICmpULT
	OpSelect
	OpAlloca
	OpLoad
	OpStore
	OpPtrAdd // pointer + integer element offset; stands in for GEP
	OpTrunc
	OpZExt
	OpBitCast
	OpMemCpy
	OpBr
	OpCondBr
	OpRet
)

var opcodeNames = map[Opcode]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpXor: "xor", OpOr: "or", OpAnd: "and", OpLShr: "lshr",
	OpICmpULT: "icmp.ult", OpSelect: "select", OpAlloca: "alloca", OpLoad: "load",
	OpStore: "store", OpPtrAdd: "ptradd", OpTrunc: "trunc", OpZExt: "zext",
	OpBitCast: "bitcast", OpMemCpy: "memcpy", OpBr: "br", OpCondBr: "condbr", OpRet: "ret",
}

func (op Opcode) String() string { return opcodeNames[op] }

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// IsBinary reports whether op is add, sub, mul, xor, or, or and: the
// five opcodes MBASub rewrites (spec.md §4.6) plus and. lshr is not
// included.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpXor, OpOr, OpAnd:
		return true
	default:
		return false
	}
}

// Instruction is an SSA-ish value produced by one operation. It carries
// its own use-list so it can, itself, be used as an operand by later
// instructions (ReplaceAllUsesWith relies on this).
type Instruction struct {
	useList

	Op      Opcode
	Typ     Type
	Operands []Value
	useRefs  []*Use // parallel to Operands; nil entries for non-tracked operands (constants)
	Name    string
	Parent  *BasicBlock

	// Opcode-specific fields.
	Volatile  bool  // Load/Store
	AllocType Type  // Alloca
	Targets   []*BasicBlock // Br: [target]; CondBr: [trueTarget, falseTarget]
	Align     int
}

func (i *Instruction) ValueType() Type { return i.Typ }

// ReplaceAllUsesWith rewrites every instruction that currently uses i as
// an operand to use newVal instead, per spec.md §4.6 ("the original
// instruction becomes dead ... no remaining uses").
func (i *Instruction) ReplaceAllUsesWith(newVal Value) {
	uses := append([]*Use(nil), i.Uses()...)
	for _, use := range uses {
		setOperand(use.User, use.Index, newVal)
	}
}

// IsTerminator reports whether this instruction ends a basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpBr, OpCondBr, OpRet:
		return true
	default:
		return false
	}
}
