// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

// GlobalVariable is a module-level storage location with a constant or
// mutable initializer. Global strings (spec.md §3) are represented as a
// GlobalVariable whose Initializer is a *ConstantBytes with IsString set.
type GlobalVariable struct {
	useList

	Name        string
	Initializer Value // *ConstantBytes for strings; may be nil
	IsConstant  bool
	Section     string // if set, checked against "debug"/"llvm" prefixes
	Unnamed     bool   // unnamed_addr, set on synthesized encrypted globals
	Align       int
}

func (g *GlobalVariable) ValueType() Type {
	if g.Initializer != nil {
		return PointerTo(g.Initializer.ValueType())
	}
	return PointerTo(I8)
}

// Bytes returns the raw initializer bytes and true if this global holds
// a *ConstantBytes initializer.
func (g *GlobalVariable) Bytes() ([]byte, bool) {
	cb, ok := g.Initializer.(*ConstantBytes)
	if !ok {
		return nil, false
	}
	return cb.Data, true
}
