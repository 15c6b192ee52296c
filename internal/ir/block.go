// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

// BasicBlock is an ordered list of instructions within a Function.
type BasicBlock struct {
	Name         string
	Parent       *Function
	Instructions []*Instruction
}

// Append adds inst to the end of the block and sets its Parent.
func (b *BasicBlock) Append(inst *Instruction) {
	inst.Parent = b
	b.Instructions = append(b.Instructions, inst)
}

// InsertBefore inserts inst immediately before ref in the block.
func (b *BasicBlock) InsertBefore(ref, inst *Instruction) {
	for idx, existing := range b.Instructions {
		if existing == ref {
			inst.Parent = b
			b.Instructions = append(b.Instructions, nil)
			copy(b.Instructions[idx+1:], b.Instructions[idx:])
			b.Instructions[idx] = inst
			return
		}
	}
	b.Append(inst)
}

// IndexOf returns the position of inst in the block, or -1.
func (b *BasicBlock) IndexOf(inst *Instruction) int {
	for idx, existing := range b.Instructions {
		if existing == inst {
			return idx
		}
	}
	return -1
}

// Terminator returns the block's terminating instruction, if any.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Split divides the block at splitAt: everything from splitAt onward
// (inclusive) moves into a freshly created, freshly named successor
// block, and the original block gains an unconditional branch to it.
// The new block is inserted into the parent function's block list
// immediately after the original. Used by String-Encryption's per-use
// stack-decrypt rewrite (spec.md §4.7 step 6).
func (b *BasicBlock) Split(splitAt *Instruction, newName string) *BasicBlock {
	idx := b.IndexOf(splitAt)
	if idx < 0 {
		panic("ir: Split: instruction not found in block")
	}

	tail := append([]*Instruction(nil), b.Instructions[idx:]...)
	b.Instructions = b.Instructions[:idx]

	newBlock := &BasicBlock{Name: b.Parent.UniqueBlockName(newName), Parent: b.Parent}
	for _, inst := range tail {
		newBlock.Append(inst)
	}

	b.Append(&Instruction{Op: OpBr, Typ: Void, Targets: []*BasicBlock{newBlock}})

	f := b.Parent
	pos := f.IndexOf(b)
	f.Blocks = append(f.Blocks, nil)
	copy(f.Blocks[pos+2:], f.Blocks[pos+1:])
	f.Blocks[pos+1] = newBlock

	return newBlock
}
