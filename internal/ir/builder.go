// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

// Builder emits instructions at a movable insertion point, mirroring an
// LLVM-style IRBuilder closely enough to cover everything MBASub and
// String-Encryption need: integer arithmetic, alloca/load/store with an
// explicit volatile flag, comparisons/select, pointer-offset addressing,
// truncation/casts, a memcpy intrinsic, and block terminators.
type Builder struct {
	block  *BasicBlock
	before *Instruction // nil: insert at end of block
}

// NewBuilder returns a Builder inserting at the end of bb.
func NewBuilder(bb *BasicBlock) *Builder {
	return &Builder{block: bb}
}

// InsertPoint captures a builder's position so it can be restored later
// (used when an emitter needs to temporarily jump to a function's entry
// block, e.g. to place an alloca, per spec.md §4.7's alloca cache).
type InsertPoint struct {
	block  *BasicBlock
	before *Instruction
}

func (b *Builder) SaveInsertPoint() InsertPoint {
	return InsertPoint{block: b.block, before: b.before}
}

func (b *Builder) RestoreInsertPoint(ip InsertPoint) {
	b.block = ip.block
	b.before = ip.before
}

// SetInsertPointAtEnd moves the builder to append after bb's current
// last instruction.
func (b *Builder) SetInsertPointAtEnd(bb *BasicBlock) {
	b.block = bb
	b.before = nil
}

// SetInsertPointBefore moves the builder so new instructions land
// immediately before ref.
func (b *Builder) SetInsertPointBefore(ref *Instruction) {
	b.block = ref.Parent
	b.before = ref
}

// Block returns the builder's current insertion block.
func (b *Builder) Block() *BasicBlock { return b.block }

func newInstruction(op Opcode, typ Type, operands []Value) *Instruction {
	inst := &Instruction{Op: op, Typ: typ, Operands: operands, useRefs: make([]*Use, len(operands))}
	for idx, v := range operands {
		if ref, ok := v.(interface {
			addUseRef(*Instruction, int) *Use
		}); ok {
			inst.useRefs[idx] = ref.addUseRef(inst, idx)
		}
	}
	return inst
}

// AttachOperands wires inst.Operands to the given values, registering
// use-list entries exactly as instruction creation does. Exposed for the
// module deserializer, which builds instructions in two passes (shell,
// then operand wiring) to resolve forward references within a block.
func AttachOperands(inst *Instruction, operands []Value) {
	inst.Operands = operands
	inst.useRefs = make([]*Use, len(operands))
	for idx, v := range operands {
		if ref, ok := v.(interface {
			addUseRef(*Instruction, int) *Use
		}); ok {
			inst.useRefs[idx] = ref.addUseRef(inst, idx)
		}
	}
}

func (b *Builder) insert(inst *Instruction) *Instruction {
	if b.before != nil {
		b.block.InsertBefore(b.before, inst)
	} else {
		b.block.Append(inst)
	}
	return inst
}

func (b *Builder) binop(op Opcode, lhs, rhs Value, name string) *Instruction {
	inst := newInstruction(op, lhs.ValueType(), []Value{lhs, rhs})
	inst.Name = name
	return b.insert(inst)
}

func (b *Builder) CreateAdd(lhs, rhs Value, name string) *Instruction { return b.binop(OpAdd, lhs, rhs, name) }
func (b *Builder) CreateSub(lhs, rhs Value, name string) *Instruction { return b.binop(OpSub, lhs, rhs, name) }
func (b *Builder) CreateMul(lhs, rhs Value, name string) *Instruction { return b.binop(OpMul, lhs, rhs, name) }
func (b *Builder) CreateXor(lhs, rhs Value, name string) *Instruction { return b.binop(OpXor, lhs, rhs, name) }
func (b *Builder) CreateOr(lhs, rhs Value, name string) *Instruction  { return b.binop(OpOr, lhs, rhs, name) }
func (b *Builder) CreateAnd(lhs, rhs Value, name string) *Instruction { return b.binop(OpAnd, lhs, rhs, name) }

// CreateLShr computes lhs logically shifted right by rhs bits, used by
// the inline SplitMix32 keystream emitter.
func (b *Builder) CreateLShr(lhs, rhs Value, name string) *Instruction { return b.binop(OpLShr, lhs, rhs, name) }

// CreateNot returns x XOR -1, matching LLVM's own lowering of bitwise
// NOT and letting MBASub's identities treat it as an ordinary operand.
func (b *Builder) CreateNot(x Value, name string) *Instruction {
	allOnes := NewConstantInt(x.ValueType(), ^uint64(0))
	return b.binop(OpXor, x, allOnes, name)
}

// CreateNeg returns 0 - x.
func (b *Builder) CreateNeg(x Value, name string) *Instruction {
	zero := NewConstantInt(x.ValueType(), 0)
	return b.binop(OpSub, zero, x, name)
}

func (b *Builder) CreateICmpULT(lhs, rhs Value, name string) *Instruction {
	inst := newInstruction(OpICmpULT, I1, []Value{lhs, rhs})
	inst.Name = name
	return b.insert(inst)
}

func (b *Builder) CreateSelect(cond, whenTrue, whenFalse Value, name string) *Instruction {
	inst := newInstruction(OpSelect, whenTrue.ValueType(), []Value{cond, whenTrue, whenFalse})
	inst.Name = name
	return b.insert(inst)
}

// CreateAlloca allocates a stack slot of typ, aligned to align bytes
// (0 means "default").
func (b *Builder) CreateAlloca(typ Type, align int, name string) *Instruction {
	inst := newInstruction(OpAlloca, PointerTo(typ), nil)
	inst.AllocType = typ
	inst.Align = align
	inst.Name = name
	return b.insert(inst)
}

// CreateLoad loads the value pointed to by ptr.
func (b *Builder) CreateLoad(typ Type, ptr Value, volatile bool, name string) *Instruction {
	inst := newInstruction(OpLoad, typ, []Value{ptr})
	inst.Volatile = volatile
	inst.Name = name
	return b.insert(inst)
}

// CreateStore stores val into the location pointed to by ptr.
func (b *Builder) CreateStore(val, ptr Value, volatile bool) *Instruction {
	inst := newInstruction(OpStore, Void, []Value{val, ptr})
	inst.Volatile = volatile
	return b.insert(inst)
}

// CreatePtrAdd computes ptr + offset (an element-wise pointer
// adjustment), standing in for LLVM's getelementptr.
func (b *Builder) CreatePtrAdd(ptr, offset Value, name string) *Instruction {
	inst := newInstruction(OpPtrAdd, ptr.ValueType(), []Value{ptr, offset})
	inst.Name = name
	return b.insert(inst)
}

// CreateTrunc truncates x to typ (a narrower integer type).
func (b *Builder) CreateTrunc(x Value, typ Type, name string) *Instruction {
	inst := newInstruction(OpTrunc, typ, []Value{x})
	inst.Name = name
	return b.insert(inst)
}

// CreateZExt zero-extends x to typ (a wider integer type).
func (b *Builder) CreateZExt(x Value, typ Type, name string) *Instruction {
	inst := newInstruction(OpZExt, typ, []Value{x})
	inst.Name = name
	return b.insert(inst)
}

// CreateBitCast reinterprets x as typ without changing bits (used for
// the i8* casts in String-Encryption).
func (b *Builder) CreateBitCast(x Value, typ Type, name string) *Instruction {
	inst := newInstruction(OpBitCast, typ, []Value{x})
	inst.Name = name
	return b.insert(inst)
}

// CreateMemCpy copies length bytes from src to dst.
func (b *Builder) CreateMemCpy(dst, src, length Value) *Instruction {
	inst := newInstruction(OpMemCpy, Void, []Value{dst, src, length})
	return b.insert(inst)
}

// CreateBr emits an unconditional branch to target.
func (b *Builder) CreateBr(target *BasicBlock) *Instruction {
	inst := newInstruction(OpBr, Void, nil)
	inst.Targets = []*BasicBlock{target}
	return b.insert(inst)
}

// CreateCondBr emits a conditional branch.
func (b *Builder) CreateCondBr(cond Value, whenTrue, whenFalse *BasicBlock) *Instruction {
	inst := newInstruction(OpCondBr, Void, []Value{cond})
	inst.Targets = []*BasicBlock{whenTrue, whenFalse}
	return b.insert(inst)
}

// CreateRetVoid emits a void return.
func (b *Builder) CreateRetVoid() *Instruction {
	return b.insert(newInstruction(OpRet, Void, nil))
}

// CreateRet emits a value-returning return.
func (b *Builder) CreateRet(val Value) *Instruction {
	return b.insert(newInstruction(OpRet, val.ValueType(), []Value{val}))
}
