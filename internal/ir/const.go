// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

// ConstantInt is an integer literal value. It carries no use-list:
// constants are never rewritten in place, only replaced at the operand
// that references them.
type ConstantInt struct {
	Typ Type
	Val uint64 // stored pre-masked to Typ.Mask()
}

// NewConstantInt returns a constant of typ holding val, truncated to
// typ's bit width.
func NewConstantInt(typ Type, val uint64) *ConstantInt {
	return &ConstantInt{Typ: typ, Val: val & typ.Mask()}
}

func (c *ConstantInt) ValueType() Type { return c.Typ }

// Int64 sign-extends the stored value according to Typ's width.
func (c *ConstantInt) Int64() int64 {
	w := c.Typ.Width
	if w >= 64 {
		return int64(c.Val)
	}
	signBit := uint64(1) << uint(w-1)
	if c.Val&signBit != 0 {
		return int64(c.Val | ^c.Typ.Mask())
	}
	return int64(c.Val)
}

// ConstantBytes is a constant byte-array value — the representation
// used for "global string" initializers per spec.md §3.
type ConstantBytes struct {
	Data     []byte
	IsString bool // flagged as representing a string, per the data model
}

func (c *ConstantBytes) ValueType() Type {
	return ArrayOf(I8, len(c.Data))
}

// ConstantGlobalPtr is a constant expression taking the address of a
// global variable (LLVM's ConstantExpr::getBitCast(&gv, i8*), used to
// build the __enc_ptr_table entries in spec.md §4.7 step 4).
type ConstantGlobalPtr struct {
	Global *GlobalVariable
}

func (c *ConstantGlobalPtr) ValueType() Type { return PointerTo(I8) }

// ConstantArray is a constant array of sub-constants, used for the
// __enc_ptr_table / __enc_len_table globals String-Encryption emits.
type ConstantArray struct {
	ElemType Type
	Elements []Value
}

func (c *ConstantArray) ValueType() Type {
	return ArrayOf(c.ElemType, len(c.Elements))
}
