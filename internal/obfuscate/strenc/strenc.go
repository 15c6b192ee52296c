// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package strenc implements the String-Encryption pass: it finds
// candidate string globals, asks the scripting bridge's OnString
// callback how each should be protected, and rewrites the module so
// those bytes only exist in cleartext after an in-place decrypt runs
// (once, at module-constructor time for the global-table path; inline
// at each use site for the stack path).
package strenc

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/zyroxobf/zyrox/internal/ir"
	"github.com/zyroxobf/zyrox/internal/metadata"
	"github.com/zyroxobf/zyrox/internal/prngsvc"
	"github.com/zyroxobf/zyrox/internal/script"
)

const stackSentinel = "/stack:"

// bridge is the subset of *script.Bridge this pass depends on, so tests
// can supply a stub instead of driving a real goja runtime.
type bridge interface {
	HasOnString() bool
	OnString(raw []byte) int
}

// Pass runs String-Encryption once over a whole module, before the
// per-function pass scheduler.
type Pass struct {
	Bridge bridge
	Rand   prngsvc.Service
	Store  *metadata.Store
	Logger *zap.Logger

	allocas *allocaCache
}

// cache lazily initializes the per-run alloca cache (spec.md §5's
// per-function alloca cache, valid only within one String-Encryption
// run).
func (p *Pass) cache() *allocaCache {
	if p.allocas == nil {
		p.allocas = newAllocaCache()
	}
	return p.allocas
}

// New returns a Pass wired to the given collaborators. rand and logger
// default to prngsvc.Default and a no-op logger when nil.
func New(b bridge, rand prngsvc.Service, store *metadata.Store, logger *zap.Logger) *Pass {
	if rand == nil {
		rand = prngsvc.Default
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pass{Bridge: b, Rand: rand, Store: store, Logger: logger}
}

type globalCandidate struct {
	gv  *ir.GlobalVariable
	raw []byte
}

type stackCandidate struct {
	gv       *ir.GlobalVariable
	stripped []byte
}

// Run discovers string candidates in m, classifies each through the
// bridge, and rewrites the module in place.
func (p *Pass) Run(m *ir.Module) error {
	if !p.Bridge.HasOnString() {
		p.Logger.Warn("OnString function not found, skipping StringEncryption pass")
		return nil
	}

	var globals []globalCandidate
	var stacks []stackCandidate

	for _, gv := range append([]*ir.GlobalVariable(nil), m.Globals...) {
		cb, ok := gv.Initializer.(*ir.ConstantBytes)
		if !ok || !cb.IsString {
			continue
		}
		if ir.IsReservedGlobalName(gv.Name) || ir.IsReservedSection(gv.Section) {
			continue
		}

		raw := cb.Data
		startsByStack := bytes.HasPrefix(raw, []byte(stackSentinel))
		disposition := p.Bridge.OnString(raw)

		switch {
		case startsByStack || disposition == script.DispositionStack:
			stripped := raw
			if startsByStack {
				stripped = raw[len(stackSentinel):]
			}
			if !p.validStackUses(gv) {
				p.Logger.Warn("string can't be encrypted on stack: it has uses outside a function",
					zap.ByteString("string", raw))
				continue
			}
			stacks = append(stacks, stackCandidate{gv: gv, stripped: append([]byte(nil), stripped...)})

		case disposition == script.DispositionGlobal:
			globals = append(globals, globalCandidate{gv: gv, raw: append([]byte(nil), raw...)})
		}
	}

	if len(globals) > 0 {
		p.obfuscateGlobalTable(m, globals)
	}
	for _, sc := range stacks {
		p.Logger.Info("encrypting on stack", zap.String("string", string(sc.stripped)))
		p.obfuscateStackString(m, sc)
	}
	return nil
}

// validStackUses reports whether every use of gv terminates at an
// instruction with an enclosing function, per spec.md §4.7 step 3. In
// this IR, a Use's User is always an *ir.Instruction directly (there is
// no separate constant-expression wrapper to unwrap), so the check
// reduces to confirming each using instruction is attached to a block.
func (p *Pass) validStackUses(gv *ir.GlobalVariable) bool {
	for _, use := range gv.Uses() {
		if use.User.Parent == nil || use.User.Parent.Parent == nil {
			return false
		}
	}
	return true
}
