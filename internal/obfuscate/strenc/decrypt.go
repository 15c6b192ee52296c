// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package strenc

import (
	"fmt"

	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/splitmix"
)

// allocaCache memoizes the three stack slots (offset, state, j) the
// inline decrypt emitter needs per function, so rewriting many strings
// in the same function never adds more than three extra slots
// (spec.md §4.7's "no decrypt emitter adds more than three new stack
// slots per function" invariant).
type allocaCache struct {
	slots map[*ir.Function]decryptSlots
}

type decryptSlots struct {
	offset, state, j *ir.Instruction
}

func newAllocaCache() *allocaCache {
	return &allocaCache{slots: map[*ir.Function]decryptSlots{}}
}

func (c *allocaCache) get(fn *ir.Function) decryptSlots {
	if s, ok := c.slots[fn]; ok {
		return s
	}
	b := entryFrontBuilder(fn)
	s := decryptSlots{
		offset: b.CreateAlloca(ir.I32, 0, "dec.offset.addr"),
		state:  b.CreateAlloca(ir.I32, 0, "dec.state.addr"),
		j:      b.CreateAlloca(ir.I32, 0, "dec.j.addr"),
	}
	c.slots[fn] = s
	return s
}

// entryFrontBuilder returns a Builder positioned to insert before fn's
// entry block's current first instruction (or at the end, if the entry
// block is still empty), mirroring LLVM's getFirstInsertionPt() used to
// place per-function stack slots ahead of everything else.
func entryFrontBuilder(fn *ir.Function) *ir.Builder {
	entry := fn.EntryBlock()
	b := ir.NewBuilder(entry)
	if len(entry.Instructions) > 0 {
		b.SetInsertPointBefore(entry.Instructions[0])
	}
	return b
}

// emitSplitMix32 emits the IR equivalent of splitmix.Mix(&state) and
// returns (new state, keystream word). It must compute byte-identical
// output to the native Mix function, since the global-table path
// encrypts with one and decrypts with the other.
func emitSplitMix32(b *ir.Builder, state ir.Value) (newState, z ir.Value) {
	c := func(v uint64) ir.Value { return ir.NewConstantInt(ir.I32, v) }

	newState = b.CreateAdd(state, c(0x9E3779B9), "state.next")
	z = newState
	z = b.CreateXor(z, b.CreateLShr(z, c(16), ""), "")
	z = b.CreateMul(z, c(0x85EBCA6B), "")
	z = b.CreateXor(z, b.CreateLShr(z, c(13), ""), "")
	z = b.CreateMul(z, c(0xC2B2AE35), "")
	z = b.CreateXor(z, b.CreateLShr(z, c(16), ""), "")
	return newState, z
}

// emitDecryptBuffer emits the inline decrypt loop from spec.md §4.3,
// reading state_seed once, and for every byte XORing it against the
// SplitMix32 keystream, 4 bytes (one keystream word) at a time. When
// inPtr == outPtr the decrypt runs in place. The builder is left
// positioned at the loop's exit block, ready for the caller to keep
// appending.
func emitDecryptBuffer(b *ir.Builder, cache *allocaCache, fn *ir.Function, stateSeed, inPtr, outPtr, length ir.Value) {
	slots := cache.get(fn)

	b.CreateStore(ir.NewConstantInt(ir.I32, 0), slots.offset, true)
	b.CreateStore(stateSeed, slots.state, true)

	loopOff := fn.AppendBlock("dec.loop.off")
	bodyOff := fn.AppendBlock("dec.body.off")
	afterOff := fn.AppendBlock("dec.after.off")

	b.CreateBr(loopOff)
	b.SetInsertPointAtEnd(loopOff)

	curOff := b.CreateLoad(ir.I32, slots.offset, true, "dec.offset")
	curState := b.CreateLoad(ir.I32, slots.state, true, "dec.state")
	cmpOff := b.CreateICmpULT(curOff, length, "dec.cmp.off")
	b.CreateCondBr(cmpOff, bodyOff, afterOff)

	b.SetInsertPointAtEnd(bodyOff)
	newState, keyStream := emitSplitMix32(b, curState)
	rem := b.CreateSub(length, curOff, "dec.rem")
	four := ir.NewConstantInt(ir.I32, 4)
	chunk := b.CreateSelect(b.CreateICmpULT(rem, four, ""), rem, four, "dec.chunk")

	loopJ := fn.AppendBlock("dec.loop.j")
	bodyJ := fn.AppendBlock("dec.body.j")
	afterJ := fn.AppendBlock("dec.after.j")

	b.CreateStore(ir.NewConstantInt(ir.I32, 0), slots.j, true)
	b.CreateBr(loopJ)

	b.SetInsertPointAtEnd(loopJ)
	curJ := b.CreateLoad(ir.I32, slots.j, true, "dec.j")
	cmpJ := b.CreateICmpULT(curJ, chunk, "dec.cmp.j")
	b.CreateCondBr(cmpJ, bodyJ, afterJ)

	b.SetInsertPointAtEnd(bodyJ)
	offPlusJ := b.CreateAdd(curOff, curJ, "dec.off.j")
	inByte := b.CreatePtrAdd(inPtr, offPlusJ, "dec.in")
	orig := b.CreateLoad(ir.I8, inByte, true, "dec.orig")
	shift := b.CreateMul(curJ, ir.NewConstantInt(ir.I32, 8), "j_x_8")
	shr := b.CreateLShr(keyStream, shift, "shr")
	mask := b.CreateTrunc(shr, ir.I8, "mask")
	decoded := b.CreateXor(orig, mask, "xor")
	outByte := b.CreatePtrAdd(outPtr, offPlusJ, "dec.out")
	b.CreateStore(decoded, outByte, true)

	jNext := b.CreateAdd(curJ, ir.NewConstantInt(ir.I32, 1), "dec.j.next")
	b.CreateStore(jNext, slots.j, true)
	b.CreateBr(loopJ)

	b.SetInsertPointAtEnd(afterJ)
	offNext := b.CreateAdd(curOff, chunk, "dec.off.next")
	b.CreateStore(offNext, slots.offset, true)
	b.CreateStore(newState, slots.state, true)
	b.CreateBr(loopOff)

	b.SetInsertPointAtEnd(afterOff)
}

// obfuscateGlobalTable implements spec.md §4.7 steps 4-5: it encrypts
// every global candidate's bytes, builds __enc_ptr_table/
// __enc_len_table, emits __decrypt_ctor, and schedules the four passes
// the constructor itself must run through.
func (p *Pass) obfuscateGlobalTable(m *ir.Module, candidates []globalCandidate) {
	masterSeed := p.Rand.Uint32()

	rawBytes := make([][]byte, len(candidates))
	for i, c := range candidates {
		rawBytes[i] = c.raw
	}
	splitmix.EncryptStrings(rawBytes, masterSeed)

	ptrElems := make([]ir.Value, len(candidates))
	lenElems := make([]ir.Value, len(candidates))
	for i, c := range candidates {
		c.gv.Initializer = &ir.ConstantBytes{Data: rawBytes[i]}
		c.gv.IsConstant = false
		ptrElems[i] = &ir.ConstantGlobalPtr{Global: c.gv}
		lenElems[i] = ir.NewConstantInt(ir.I32, uint64(len(rawBytes[i])))
	}

	ptrTable := &ir.GlobalVariable{
		Name:       "__enc_ptr_table",
		IsConstant: true,
		Initializer: &ir.ConstantArray{
			ElemType: ir.PointerTo(ir.I8),
			Elements: ptrElems,
		},
	}
	lenTable := &ir.GlobalVariable{
		Name:       "__enc_len_table",
		IsConstant: true,
		Initializer: &ir.ConstantArray{
			ElemType: ir.I32,
			Elements: lenElems,
		},
	}
	m.AddGlobal(ptrTable)
	m.AddGlobal(lenTable)

	ctor := p.buildDecryptCtor(ptrTable, lenTable, len(candidates), masterSeed)
	m.AddFunction(ctor)
	m.AppendToGlobalCtors(ctor, 0)

	p.Store.AddPass(ctor, "MBASub", map[string]int32{"PassIterations": 1})
	p.Store.AddPass(ctor, "BasicBlockSplitter", map[string]int32{"PassIterations": 1, "Arg1": 20, "Arg2": 30, "Arg3": 70})
	p.Store.AddPass(ctor, "IndirectBranch", map[string]int32{"PassIterations": 1, "Arg1": 100})
	p.Store.AddPass(ctor, "SimpleIndirectBranch", map[string]int32{"PassIterations": 1, "Arg1": 100})
}

// buildDecryptCtor emits the __decrypt_ctor() function from spec.md
// §4.7 step 4: a master loop over every encrypted string, decrypting
// each in place via the pointer/length tables.
func (p *Pass) buildDecryptCtor(ptrTable, lenTable *ir.GlobalVariable, n int, masterSeed uint32) *ir.Function {
	fn := &ir.Function{Name: "__decrypt_ctor", ReturnType: ir.Void}
	entry := fn.AppendBlock("entry")
	b := ir.NewBuilder(entry)

	masterVar := b.CreateAlloca(ir.I32, 0, "master.idx.addr")
	b.CreateStore(ir.NewConstantInt(ir.I32, 0), masterVar, false)

	loopHeader := fn.AppendBlock("master.loop.header")
	loopBody := fn.AppendBlock("master.loop.body")
	loopExit := fn.AppendBlock("master.loop.exit")

	b.CreateBr(loopHeader)
	b.SetInsertPointAtEnd(loopHeader)

	masterVal := b.CreateLoad(ir.I32, masterVar, false, "master.val")
	numStrings := ir.NewConstantInt(ir.I32, uint64(n))
	cmp := b.CreateICmpULT(masterVal, numStrings, "master.cmp")
	b.CreateCondBr(cmp, loopBody, loopExit)

	b.SetInsertPointAtEnd(loopBody)

	ptrElemBase := b.CreateBitCast(ptrTable, ir.PointerTo(ir.PointerTo(ir.I8)), "")
	ptrElemAddr := b.CreatePtrAdd(ptrElemBase, masterVal, "")
	strPtr := b.CreateLoad(ir.PointerTo(ir.I8), ptrElemAddr, false, "str.ptr")

	lenElemBase := b.CreateBitCast(lenTable, ir.PointerTo(ir.I32), "")
	lenElemAddr := b.CreatePtrAdd(lenElemBase, masterVal, "")
	strLen := b.CreateLoad(ir.I32, lenElemAddr, false, "str.len")

	masterSeedVal := ir.NewConstantInt(ir.I32, uint64(masterSeed))
	stateSeed := b.CreateXor(masterSeedVal, masterVal, "state.seed")

	emitDecryptBuffer(b, p.cache(), fn, stateSeed, strPtr, strPtr, strLen)

	nextVal := b.CreateAdd(masterVal, ir.NewConstantInt(ir.I32, 1), "master.idx.next")
	b.CreateStore(nextVal, masterVar, false)
	b.CreateBr(loopHeader)

	b.SetInsertPointAtEnd(loopExit)
	b.CreateRetVoid()

	return fn
}

// obfuscateStackString implements spec.md §4.7 step 6: encrypt the
// string once, park it in a new unnamed global, and rewrite every use
// to read from a per-call-site stack buffer that's decrypted just
// before the use.
func (p *Pass) obfuscateStackString(m *ir.Module, sc stackCandidate) {
	masterSeed := p.Rand.Uint32()
	enc := append([]byte(nil), sc.stripped...)
	splitmix.XorCrypt(enc, masterSeed)
	size := len(enc)

	newGV := &ir.GlobalVariable{
		Unnamed:     true,
		Align:       1,
		Initializer: &ir.ConstantBytes{Data: enc},
	}
	m.AddGlobal(newGV)

	uses := append([]*ir.Use(nil), sc.gv.Uses()...)
	for _, use := range uses {
		userInst := use.User
		fn := userInst.Parent.Parent
		if fn == nil {
			continue
		}

		allocaBuilder := entryFrontBuilder(fn)
		allocaInst := allocaBuilder.CreateAlloca(ir.ArrayOf(ir.I8, size), 4, "str.stack")

		original := userInst.Parent
		split := original.Split(userInst, fmt.Sprintf("%s.str", original.Name))
		// Split appended an unconditional branch to split as original's
		// new terminator; drop it and replace it with the decrypt
		// sequence's own branch into split once that sequence is built.
		original.Instructions = original.Instructions[:len(original.Instructions)-1]

		ob := ir.NewBuilder(original)
		allocaPtr := ob.CreateBitCast(allocaInst, ir.PointerTo(ir.I8), "")
		srcPtr := ob.CreateBitCast(newGV, ir.PointerTo(ir.I8), "")
		ob.CreateMemCpy(allocaPtr, srcPtr, ir.NewConstantInt(ir.I64, uint64(size)))

		seedConst := ir.NewConstantInt(ir.I32, uint64(masterSeed))
		lenConst := ir.NewConstantInt(ir.I32, uint64(size))
		emitDecryptBuffer(ob, p.cache(), fn, seedConst, allocaPtr, allocaPtr, lenConst)

		ob.CreateBr(split)
		ir.SetOperand(use.User, use.Index, allocaPtr)
	}

	m.RemoveGlobal(sc.gv)
}
