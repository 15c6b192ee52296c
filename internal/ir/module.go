// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

import "strings"

// GlobalCtor is an entry in the module's global-constructors list: a
// function the runtime invokes before main, ordered by ascending
// priority (spec.md glossary, "Global constructor").
type GlobalCtor struct {
	Func     *Function
	Priority int
}

// Module is an externally owned container of global variables and
// functions, mutated in place by the obfuscation passes.
type Module struct {
	Name      string
	Globals   []*GlobalVariable
	Functions []*Function
	Ctors     []GlobalCtor
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddGlobal appends a global variable.
func (m *Module) AddGlobal(gv *GlobalVariable) { m.Globals = append(m.Globals, gv) }

// AddFunction appends a function.
func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }

// AppendToGlobalCtors registers fn as a global constructor at the given
// priority (lower priorities run earlier), mirroring LLVM's
// appendToGlobalCtors utility that spec.md §4.7 step 4 relies on.
func (m *Module) AppendToGlobalCtors(fn *Function, priority int) {
	m.Ctors = append(m.Ctors, GlobalCtor{Func: fn, Priority: priority})
}

// RemoveGlobal erases gv from the module's global list (spec.md §4.7's
// "Original Stack globals are erased from the module").
func (m *Module) RemoveGlobal(gv *GlobalVariable) {
	for idx, existing := range m.Globals {
		if existing == gv {
			m.Globals = append(m.Globals[:idx], m.Globals[idx+1:]...)
			return
		}
	}
}

// IsReservedGlobalName reports whether name begins with a reserved
// prefix that disqualifies a global from string discovery (spec.md §3).
func IsReservedGlobalName(name string) bool {
	return strings.HasPrefix(name, "llvm.")
}

// IsReservedSection reports whether section disqualifies a global from
// string discovery (spec.md §3): debug or llvm metadata sections.
func IsReservedSection(section string) bool {
	return strings.HasPrefix(section, "debug") || strings.HasPrefix(section, "llvm")
}
