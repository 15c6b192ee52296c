// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

import "fmt"

// Param is a function parameter: a name plus a type, addressable as a
// Value by instructions in the function body.
type Param struct {
	Name string
	Typ  Type
}

func (p *Param) ValueType() Type { return p.Typ }

// Function is a sequence of basic blocks of typed SSA instructions. A
// Function with no Blocks is a declaration and is skipped by string
// discovery and the pass scheduler (spec.md §4.8).
type Function struct {
	Name       string
	Params     []*Param
	ReturnType Type
	Blocks     []*BasicBlock

	// Demangled is the display name passed to the scripting bridge's
	// RunOnFunction (spec.md §6, "demangled form"). Defaults to Name.
	Demangled string
}

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// EntryBlock returns the function's first basic block, or nil.
func (f *Function) EntryBlock() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// IndexOf returns the position of bb in f.Blocks, or -1.
func (f *Function) IndexOf(bb *BasicBlock) int {
	for idx, existing := range f.Blocks {
		if existing == bb {
			return idx
		}
	}
	return -1
}

// AppendBlock creates and appends a new named basic block, uniquifying
// name against the function's existing block names the way LLVM's own
// BasicBlock::Create does.
func (f *Function) AppendBlock(name string) *BasicBlock {
	bb := &BasicBlock{Name: f.UniqueBlockName(name), Parent: f}
	f.Blocks = append(f.Blocks, bb)
	return bb
}

// UniqueBlockName returns base if no block in f is already named base,
// or base suffixed with the lowest ".N" (N >= 1) that isn't taken.
func (f *Function) UniqueBlockName(base string) string {
	if !f.hasBlockNamed(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d", base, i)
		if !f.hasBlockNamed(candidate) {
			return candidate
		}
	}
}

func (f *Function) hasBlockNamed(name string) bool {
	for _, bb := range f.Blocks {
		if bb.Name == name {
			return true
		}
	}
	return false
}

// DisplayName returns the name used in logs and passed to RunOnFunction.
func (f *Function) DisplayName() string {
	if f.Demangled != "" {
		return f.Demangled
	}
	return f.Name
}
