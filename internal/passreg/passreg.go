// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package passreg is the static, ordered registry of obfuscation
// passes. Registration order assigns each pass its stable integer
// "obfuscation type" index, exposed to the scripting bridge as
// ObfuscationType.<DisplayName> and as the first argument to
// z.RegisterPass. The registry also resolves a metadata record's
// code_name back to a runnable Pass during scheduler replay.
package passreg

import (
	"fmt"
	"sync"

	"github.com/zyroxobf/zyrox/internal/ir"
)

// Pass is anything the scheduler can replay: given a function and the
// options recorded for one invocation, it rewrites the function in place.
type Pass interface {
	RunOnFunction(fn *ir.Function, options map[string]int32) error
}

// Descriptor is one registry entry.
type Descriptor struct {
	DisplayName string
	CodeName    string
	Index       int
	Pass        Pass
}

// Registry is an ordered, append-only list of pass descriptors. Every
// method takes the registry's lock, so Register and the lookups are safe
// to call concurrently.
type Registry struct {
	mu      sync.RWMutex
	byIndex []Descriptor
	byCode  map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCode: map[string]*Descriptor{}}
}

// Register appends a new descriptor, assigning it the next dense index.
// Registration order is significant: it is what scripts see as
// ObfuscationType's integer values, and must stay stable across runs for
// a given configuration of passes.
func (r *Registry) Register(displayName, codeName string, pass Pass) Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := Descriptor{DisplayName: displayName, CodeName: codeName, Index: len(r.byIndex), Pass: pass}
	r.byIndex = append(r.byIndex, d)
	r.byCode[codeName] = &r.byIndex[len(r.byIndex)-1]
	return d
}

// ByIndex resolves a descriptor by its obfuscation-type index, as used
// by RegisterPass(index, options) from scripts.
func (r *Registry) ByIndex(index int) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.byIndex) {
		return Descriptor{}, false
	}
	return r.byIndex[index], true
}

// ByCodeName resolves a descriptor by its metadata code_name, as used by
// the scheduler during replay.
func (r *Registry) ByCodeName(codeName string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byCode[codeName]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// All returns every descriptor in registration order, for building the
// script's ObfuscationType object.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.byIndex))
	copy(out, r.byIndex)
	return out
}

// ErrUnknownCodeName describes a record whose code_name has no
// registered pass. Nothing in this module returns it: the scheduler logs
// such a record and skips it.
type ErrUnknownCodeName struct {
	CodeName string
}

func (e ErrUnknownCodeName) Error() string {
	return fmt.Sprintf("passreg: unknown pass code_name %q", e.CodeName)
}
