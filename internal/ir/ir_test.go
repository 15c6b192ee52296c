// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAdder builds: fn add(a i32, b i32) i32 { return a + b }
func buildAdder(name string) *Function {
	f := &Function{Name: name, ReturnType: I32}
	a := &Param{Name: "a", Typ: I32}
	b := &Param{Name: "b", Typ: I32}
	f.Params = []*Param{a, b}

	entry := f.AppendBlock("entry")
	bld := NewBuilder(entry)
	sum := bld.CreateAdd(a, b, "sum")
	bld.CreateRet(sum)
	return f
}

// TestInterpreterRunsAdder confirms the interpreter evaluates a minimal
// single-block function the way builder-emitted IR is expected to run.
func TestInterpreterRunsAdder(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	f := buildAdder("add")
	in := NewInterpreter()
	result, err := in.Run(f, 3, 4)
	require.NoError(t, err)
	is.EqualValues(7, result)
}

// TestReplaceAllUsesWithRewritesOperands confirms ReplaceAllUsesWith moves
// every use over to the replacement and leaves the original with none.
func TestReplaceAllUsesWithRewritesOperands(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	f := &Function{Name: "f", ReturnType: I32}
	entry := f.AppendBlock("entry")
	bld := NewBuilder(entry)

	one := NewConstantInt(I32, 1)
	two := NewConstantInt(I32, 2)
	orig := bld.CreateAdd(one, two, "orig")
	useA := bld.CreateAdd(orig, one, "useA")
	useB := bld.CreateMul(orig, two, "useB")
	bld.CreateRet(useB)

	replacement := NewConstantInt(I32, 99)
	orig.ReplaceAllUsesWith(replacement)

	is.Empty(orig.Uses(), "original instruction should have no remaining uses")
	is.Same(Value(replacement), useA.Operands[0])
	is.Same(Value(replacement), useB.Operands[0])
}

// TestBasicBlockSplitMovesTailAndBranches confirms Split moves the tail of
// a block into a new successor and leaves the original block terminated
// by an unconditional branch to it.
func TestBasicBlockSplitMovesTailAndBranches(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	f := &Function{Name: "f", ReturnType: Void}
	entry := f.AppendBlock("entry")
	bld := NewBuilder(entry)

	one := NewConstantInt(I32, 1)
	first := bld.CreateAdd(one, one, "first")
	second := bld.CreateAdd(first, one, "second")
	bld.CreateRetVoid()

	tail := entry.Split(second, "entry.split")

	is.Len(entry.Instructions, 2, "original block keeps first plus the new branch")
	is.Equal(OpBr, entry.Terminator().Op)
	is.Same(tail, entry.Terminator().Targets[0])
	is.Len(tail.Instructions, 2, "split block keeps second and the return")
	is.Same(second, tail.Instructions[0])
	is.Equal(1, f.IndexOf(tail))
}

// TestModuleJSONRoundTrip confirms a module built with the IR API survives
// ModuleToJSON followed by ModuleFromJSON with identical structure.
func TestModuleJSONRoundTrip(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	m := NewModule("test")

	greeting := &GlobalVariable{Name: "greeting", Initializer: &ConstantBytes{Data: []byte("hi"), IsString: true}}
	m.AddGlobal(greeting)

	table := &GlobalVariable{
		Name: "__enc_ptr_table",
		Initializer: &ConstantArray{
			ElemType: PointerTo(I8),
			Elements: []Value{&ConstantGlobalPtr{Global: greeting}},
		},
		Unnamed: true,
	}
	m.AddGlobal(table)

	f := buildAdder("add")
	m.AddFunction(f)
	m.AppendToGlobalCtors(f, 0)

	data, err := ModuleToJSON(m)
	require.NoError(t, err)

	m2, err := ModuleFromJSON(data)
	require.NoError(t, err)

	is.Equal(m.Name, m2.Name)
	require.Len(t, m2.Globals, 2)
	is.Equal("greeting", m2.Globals[0].Name)
	bytes, ok := m2.Globals[0].Bytes()
	require.True(t, ok)
	is.Equal("hi", string(bytes))

	arr, ok := m2.Globals[1].Initializer.(*ConstantArray)
	require.True(t, ok)
	require.Len(t, arr.Elements, 1)
	ptr, ok := arr.Elements[0].(*ConstantGlobalPtr)
	require.True(t, ok)
	is.Same(m2.Globals[0], ptr.Global, "globalptr must resolve to the deserialized sibling, not a copy")

	require.Len(t, m2.Functions, 1)
	f2 := m2.Functions[0]
	is.Equal("add", f2.Name)
	require.Len(t, f2.Blocks, 1)
	require.Len(t, f2.Blocks[0].Instructions, 2)
	is.Equal(OpAdd, f2.Blocks[0].Instructions[0].Op)
	is.Equal(OpRet, f2.Blocks[0].Instructions[1].Op)

	require.Len(t, m2.Ctors, 1)
	is.Same(f2, m2.Ctors[0].Func)

	result, err := NewInterpreter().Run(f2, 10, 20)
	require.NoError(t, err)
	is.EqualValues(30, result)
}

// TestIsReservedGlobalNameAndSection confirms the string-discovery
// exclusion rules for reserved names and sections.
func TestIsReservedGlobalNameAndSection(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	is.True(IsReservedGlobalName("llvm.global_ctors"))
	is.False(IsReservedGlobalName("my_string"))
	is.True(IsReservedSection("debug_info"))
	is.True(IsReservedSection("llvm.metadata"))
	is.False(IsReservedSection(".rodata"))
}
