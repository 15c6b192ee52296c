// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package passreg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zyroxobf/zyrox/internal/ir"
)

type stubPass struct{ ran int }

func (p *stubPass) RunOnFunction(fn *ir.Function, options map[string]int32) error {
	p.ran++
	return nil
}

// TestRegisterAssignsDenseStableIndices confirms registration order
// determines each pass's obfuscation-type index, starting at 0.
func TestRegisterAssignsDenseStableIndices(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	r := NewRegistry()
	d0 := r.Register("MBASub", "MBASub", &stubPass{})
	d1 := r.Register("BasicBlockSplitter", "BasicBlockSplitter", &stubPass{})

	is.Equal(0, d0.Index)
	is.Equal(1, d1.Index)
}

// TestByIndexAndByCodeNameResolveSameDescriptor confirms both lookup
// paths a script and the scheduler each use return the same pass.
func TestByIndexAndByCodeNameResolveSameDescriptor(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	r := NewRegistry()
	pass := &stubPass{}
	r.Register("MBASub", "MBASub", pass)

	byIdx, ok := r.ByIndex(0)
	is.True(ok)
	byCode, ok := r.ByCodeName("MBASub")
	is.True(ok)

	is.Equal(byIdx.CodeName, byCode.CodeName)
	is.Same(pass, byIdx.Pass)
}

// TestByIndexOutOfRange confirms an unrecognized index (e.g. the
// "unrecognized index" scenario from a script calling RegisterPass with
// a bogus type) reports not-found rather than panicking.
func TestByIndexOutOfRange(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	r := NewRegistry()
	r.Register("MBASub", "MBASub", &stubPass{})

	_, ok := r.ByIndex(9999)
	is.False(ok)
	_, ok = r.ByIndex(-1)
	is.False(ok)
}

// TestByCodeNameUnknown confirms resolving an unregistered code_name
// reports not-found.
func TestByCodeNameUnknown(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	r := NewRegistry()
	_, ok := r.ByCodeName("NoSuchPass")
	is.False(ok)
}

// TestAllReturnsRegistrationOrder confirms All() preserves the order
// passes were registered in, since the scripting bridge builds
// ObfuscationType from this order.
func TestAllReturnsRegistrationOrder(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	r := NewRegistry()
	r.Register("MBASub", "MBASub", &stubPass{})
	r.Register("BasicBlockSplitter", "BasicBlockSplitter", &stubPass{})
	r.Register("IndirectBranch", "IndirectBranch", &stubPass{})

	all := r.All()
	is.Equal([]string{"MBASub", "BasicBlockSplitter", "IndirectBranch"},
		[]string{all[0].DisplayName, all[1].DisplayName, all[2].DisplayName})
}
