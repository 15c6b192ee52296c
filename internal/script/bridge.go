// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package script is the embedded scripting bridge: it evaluates a
// user-supplied configuration program in a goja virtual machine, exposes
// the z.* host API and the ObfuscationType constant table, and hands
// back typed accessors to the user's Init/RunOnFunction/OnString
// callbacks.
package script

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/metadata"
	"github.com/zyroxobf/zyrox/internal/passreg"
)

// String-disposition constants published as z.None, z.Stack, z.Global.
const (
	DispositionNone   = 0
	DispositionStack  = 1
	DispositionGlobal = 2
)

// Bridge owns the goja runtime for one configuration program's lifetime.
// It is not safe for concurrent use: the scripting runtime it wraps is
// single-threaded, matching the embedded-interpreter model it replaces.
type Bridge struct {
	vm       *goja.Runtime
	registry *passreg.Registry
	store    *metadata.Store
	logger   *zap.Logger

	configClass goja.Value
	classObj    *goja.Object

	currentFn *ir.Function

	metaStrings []string
}

// NewBridge constructs a Bridge that resolves RegisterPass types against
// registry and records passes into store.
func NewBridge(registry *passreg.Registry, store *metadata.Store, logger *zap.Logger) *Bridge {
	b := &Bridge{registry: registry, store: store, logger: logger, vm: goja.New()}
	b.publishHostAPI()
	return b
}

// publishHostAPI installs the z object and ObfuscationType table the
// configuration program sees at evaluation time.
func (b *Bridge) publishHostAPI() {
	z := b.vm.NewObject()
	_ = z.Set("None", DispositionNone)
	_ = z.Set("Stack", DispositionStack)
	_ = z.Set("Global", DispositionGlobal)
	_ = z.Set("RegisterClass", b.jsRegisterClass)
	_ = z.Set("RegisterPass", b.jsRegisterPass)
	_ = z.Set("AddMetaData", b.jsAddMetaData)
	_ = z.Set("log", b.jsLog)
	_ = b.vm.Set("z", z)

	obfType := b.vm.NewObject()
	for _, d := range b.registry.All() {
		_ = obfType.Set(d.DisplayName, d.Index)
	}
	_ = b.vm.Set("ObfuscationType", obfType)
}

func (b *Bridge) jsRegisterClass(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		b.logger.Warn("z.RegisterClass called with no argument")
		return goja.Undefined()
	}
	b.configClass = call.Argument(0)
	b.classObj = b.configClass.ToObject(b.vm)
	return goja.Undefined()
}

func (b *Bridge) jsAddMetaData(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Undefined()
	}
	b.metaStrings = append(b.metaStrings, call.Argument(0).String())
	return goja.Undefined()
}

func (b *Bridge) jsLog(call goja.FunctionCall) goja.Value {
	args := make([]interface{}, len(call.Arguments))
	for i, a := range call.Arguments {
		args[i] = a.Export()
	}
	b.logger.Sugar().Info(args...)
	return goja.Undefined()
}

// jsRegisterPass implements z.RegisterPass(type, options): it requires
// an implicit "current function" context, coerces each option to a
// signed 32-bit integer, and either adds a metadata record or logs why
// it didn't.
func (b *Bridge) jsRegisterPass(call goja.FunctionCall) goja.Value {
	if b.currentFn == nil {
		b.logger.Error("z.RegisterPass called outside a RunOnFunction context")
		return goja.Undefined()
	}
	if len(call.Arguments) < 1 {
		b.logger.Warn("z.RegisterPass called with no pass type")
		return goja.Undefined()
	}

	index := int(call.Argument(0).ToInteger())
	descriptor, ok := b.registry.ByIndex(index)
	if !ok {
		b.logger.Error("z.RegisterPass: unrecognized obfuscation type index", zap.Int("index", index))
		return goja.Undefined()
	}

	options := map[string]int32{}
	if len(call.Arguments) >= 2 && !goja.IsUndefined(call.Argument(1)) && !goja.IsNull(call.Argument(1)) {
		obj := call.Argument(1).ToObject(b.vm)
		for _, key := range obj.Keys() {
			options[key] = coerceInt32(obj.Get(key))
		}
	}

	iterations, present := options["PassIterations"]
	if !present || iterations <= 0 {
		b.logger.Warn("z.RegisterPass: PassIterations missing or <= 0, skipping",
			zap.String("pass", descriptor.DisplayName))
		return goja.Undefined()
	}

	b.store.AddPass(b.currentFn, descriptor.CodeName, options)
	return goja.Undefined()
}

// coerceInt32 converts v to a string and parses it as a signed 32-bit
// integer, matching RegisterPass's option-coercion rule; parse failure
// (including for non-numeric strings) yields 0.
func coerceInt32(v goja.Value) int32 {
	n, err := strconv.ParseInt(v.String(), 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

// LoadSource compiles and evaluates a configuration program. The host
// API is already installed, so top-level code may call z.RegisterClass
// immediately.
func (b *Bridge) LoadSource(name, src string) error {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("script: compiling %s: %w", name, err)
	}
	if _, err := b.vm.RunProgram(prog); err != nil {
		return fmt.Errorf("script: evaluating %s: %w", name, err)
	}
	return nil
}

// HasConfigClass reports whether a script called z.RegisterClass.
func (b *Bridge) HasConfigClass() bool { return b.classObj != nil }

func (b *Bridge) method(name string) (goja.Callable, bool) {
	if b.classObj == nil {
		return nil, false
	}
	fn, ok := goja.AssertFunction(b.classObj.Get(name))
	return fn, ok
}

// Init invokes the config class's Init method, if present, once after
// script evaluation.
func (b *Bridge) Init() error {
	fn, ok := b.method("Init")
	if !ok {
		return nil
	}
	_, err := fn(b.configClass)
	if err != nil {
		b.logger.Error("script Init raised", zap.Error(err))
	}
	return nil
}

// HasRunOnFunction reports whether the config class defines
// RunOnFunction, per the "skip the whole pass" rule when it's absent.
func (b *Bridge) HasRunOnFunction() bool {
	_, ok := b.method("RunOnFunction")
	return ok
}

// HasOnString reports whether the config class defines OnString.
func (b *Bridge) HasOnString() bool {
	_, ok := b.method("OnString")
	return ok
}

// RunOnFunction calls the config class's RunOnFunction(name) with fn
// bound as the implicit current-function context for any RegisterPass
// calls it makes. A raised exception is logged and treated as "no
// registration"; other functions still get their turn.
func (b *Bridge) RunOnFunction(fn *ir.Function) {
	jsFn, ok := b.method("RunOnFunction")
	if !ok {
		return
	}

	b.currentFn = fn
	defer func() { b.currentFn = nil }()

	if _, err := jsFn(b.configClass, b.vm.ToValue(fn.DisplayName())); err != nil {
		b.logger.Warn("RunOnFunction raised", zap.String("function", fn.DisplayName()), zap.Error(err))
	}
}

// OnString calls the config class's OnString(s) with raw decoded as a
// string, and returns its disposition. A raised exception is logged and
// treated as None; an undefined or null result is treated as None, and
// any other result goes through JavaScript integer conversion (a value
// that converts to NaN becomes 0, which is None).
func (b *Bridge) OnString(raw []byte) int {
	jsFn, ok := b.method("OnString")
	if !ok {
		return DispositionNone
	}

	rv, err := jsFn(b.configClass, b.vm.ToValue(string(raw)))
	if err != nil {
		b.logger.Warn("OnString raised", zap.Error(err))
		return DispositionNone
	}
	if goja.IsUndefined(rv) || goja.IsNull(rv) {
		return DispositionNone
	}
	return int(rv.ToInteger())
}

// MetaDataStrings returns every string accumulated via z.AddMetaData, in
// call order.
func (b *Bridge) MetaDataStrings() []string {
	return append([]string(nil), b.metaStrings...)
}
