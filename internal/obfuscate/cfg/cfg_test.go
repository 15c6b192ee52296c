// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyroxobf/zyrox/internal/ir"
)

// TestBasicBlockSplitterPreservesSemantics confirms splitting a block
// with several instructions leaves the function computing the same
// result, just spread across more blocks.
func TestBasicBlockSplitterPreservesSemantics(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	fn := &ir.Function{Name: "f", ReturnType: ir.I32}
	a := &ir.Param{Name: "a", Typ: ir.I32}
	fn.Params = []*ir.Param{a}
	entry := fn.AppendBlock("entry")
	bld := ir.NewBuilder(entry)
	one := ir.NewConstantInt(ir.I32, 1)
	x := bld.CreateAdd(a, one, "x")
	y := bld.CreateAdd(x, one, "y")
	bld.CreateRet(y)

	before := len(fn.Blocks)

	var splitter BasicBlockSplitter
	err := splitter.RunOnFunction(fn, map[string]int32{"PassIterations": 1})
	require.NoError(t, err)

	is.Greater(len(fn.Blocks), before)

	result, err := ir.NewInterpreter().Run(fn, 5)
	require.NoError(t, err)
	is.EqualValues(7, result)
}

// TestIndirectBranchStubsAreNoOps confirms the indirect-branch stand-ins
// leave a function completely untouched, since they model out-of-scope
// collaborators.
func TestIndirectBranchStubsAreNoOps(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	fn := &ir.Function{Name: "f", ReturnType: ir.Void}
	entry := fn.AppendBlock("entry")
	ir.NewBuilder(entry).CreateRetVoid()
	blockCount := len(fn.Blocks)

	var ib IndirectBranch
	require.NoError(t, ib.RunOnFunction(fn, map[string]int32{"PassIterations": 5}))
	is.Equal(blockCount, len(fn.Blocks))

	var sib SimpleIndirectBranch
	require.NoError(t, sib.RunOnFunction(fn, map[string]int32{"PassIterations": 5}))
	is.Equal(blockCount, len(fn.Blocks))
}
