// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/metadata"
	"github.com/zyroxobf/zyrox/internal/passreg"
)

type stubPass struct{}

func (stubPass) RunOnFunction(fn *ir.Function, options map[string]int32) error { return nil }

func newTestBridge(t *testing.T) (*Bridge, *passreg.Registry, *metadata.Store) {
	t.Helper()
	reg := passreg.NewRegistry()
	reg.Register("MBASub", "MBASub", stubPass{})
	reg.Register("BasicBlockSplitter", "BasicBlockSplitter", stubPass{})
	store := metadata.NewStore()
	return NewBridge(reg, store, zap.NewNop()), reg, store
}

// TestRegisterPassAddsRecordWithinFunctionContext confirms a well-formed
// RegisterPass call inside RunOnFunction produces exactly one metadata
// record on the bound function.
func TestRegisterPassAddsRecordWithinFunctionContext(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, store := newTestBridge(t)
	src := `
		function Config() {}
		Config.prototype.RunOnFunction = function(name) {
			z.RegisterPass(ObfuscationType.MBASub, { PassIterations: 2 });
		};
		z.RegisterClass(new Config());
	`
	require.NoError(t, b.LoadSource("test.js", src))

	fn := &ir.Function{Name: "target"}
	b.RunOnFunction(fn)

	recs := store.Records(fn)
	require.Len(t, recs, 1)
	is.Equal("MBASub", recs[0].CodeName)
	is.EqualValues(2, recs[0].Iterations())
}

// TestInvalidOptionSkipsRecord confirms a non-numeric PassIterations
// coerces to 0 and causes the registration to be skipped (spec scenario
// "Invalid option").
func TestInvalidOptionSkipsRecord(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, store := newTestBridge(t)
	src := `
		function Config() {}
		Config.prototype.RunOnFunction = function(name) {
			z.RegisterPass(ObfuscationType.MBASub, { PassIterations: "not-a-number" });
		};
		z.RegisterClass(new Config());
	`
	require.NoError(t, b.LoadSource("test.js", src))

	fn := &ir.Function{Name: "target"}
	b.RunOnFunction(fn)

	is.Empty(store.Records(fn))
}

// TestUnrecognizedIndexSkipsOnlyThatRegistration confirms registering an
// unknown obfuscation-type index is skipped without aborting the rest of
// RunOnFunction's registrations (spec scenario "Unrecognized index").
func TestUnrecognizedIndexSkipsOnlyThatRegistration(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, store := newTestBridge(t)
	src := `
		function Config() {}
		Config.prototype.RunOnFunction = function(name) {
			z.RegisterPass(9999, { PassIterations: 1 });
			z.RegisterPass(ObfuscationType.BasicBlockSplitter, { PassIterations: 1 });
		};
		z.RegisterClass(new Config());
	`
	require.NoError(t, b.LoadSource("test.js", src))

	fn := &ir.Function{Name: "target"}
	b.RunOnFunction(fn)

	recs := store.Records(fn)
	require.Len(t, recs, 1)
	is.Equal("BasicBlockSplitter", recs[0].CodeName)
}

// TestRunOnFunctionReceivesDemangledName confirms the display/demangled
// name, not the raw symbol name, is what reaches RunOnFunction.
func TestRunOnFunctionReceivesDemangledName(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, _ := newTestBridge(t)
	src := `
		var seenName = null;
		function Config() {}
		Config.prototype.RunOnFunction = function(name) { seenName = name; };
		z.RegisterClass(new Config());
		z.getSeenName = function() { return seenName; };
	`
	require.NoError(t, b.LoadSource("test.js", src))

	fn := &ir.Function{Name: "_Z3fooi", Demangled: "foo(int)"}
	b.RunOnFunction(fn)

	v, err := b.vm.RunString("seenName")
	require.NoError(t, err)
	is.Equal("foo(int)", v.String())
}

// TestOnStringDispositions confirms OnString's three return values map
// to the expected dispositions, and that HasOnString reports the method
// as present when the config class defines it.
func TestOnStringDispositions(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, _ := newTestBridge(t)
	src := `
		function Config() {}
		Config.prototype.OnString = function(s) {
			if (s === "keep") return z.None;
			if (s === "stack-me") return z.Stack;
			return z.Global;
		};
		z.RegisterClass(new Config());
	`
	require.NoError(t, b.LoadSource("test.js", src))
	is.True(b.HasOnString())

	is.Equal(DispositionNone, b.OnString([]byte("keep")))
	is.Equal(DispositionStack, b.OnString([]byte("stack-me")))
	is.Equal(DispositionGlobal, b.OnString([]byte("anything else")))
}

// TestMissingRunOnFunctionIsReported confirms HasRunOnFunction reports
// false when the config class never defines the method (spec scenario
// "Script skip").
func TestMissingRunOnFunctionIsReported(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, _ := newTestBridge(t)
	src := `
		function Config() {}
		Config.prototype.OnString = function(s) { return z.None; };
		z.RegisterClass(new Config());
	`
	require.NoError(t, b.LoadSource("test.js", src))

	is.False(b.HasRunOnFunction())
	is.True(b.HasOnString())
}

// TestAddMetaDataAccumulatesStrings confirms z.AddMetaData calls are
// recorded in order.
func TestAddMetaDataAccumulatesStrings(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	b, _, _ := newTestBridge(t)
	src := `
		z.AddMetaData("built-by-zyrox");
		z.AddMetaData("run-2");
	`
	require.NoError(t, b.LoadSource("test.js", src))

	is.Equal([]string{"built-by-zyrox", "run-2"}, b.MetaDataStrings())
}
