// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package ir

import (
	"encoding/json"
	"fmt"
)

// This file implements the module's on-disk representation: the CLI reads
// a module in with ModuleFromJSON and writes the transformed module back
// out with ModuleToJSON. It is deliberately narrow rather than a general
// IR container format — it round-trips exactly what the obfuscation
// passes produce and consume, nothing more.

type typeDTO struct {
	Kind string   `json:"kind"`
	Width int     `json:"width,omitempty"`
	Len  int      `json:"len,omitempty"`
	Elem *typeDTO `json:"elem,omitempty"`
}

func encodeType(t Type) typeDTO {
	d := typeDTO{Width: t.Width, Len: t.Len}
	switch t.Kind {
	case KindVoid:
		d.Kind = "void"
	case KindInt:
		d.Kind = "int"
	case KindPointer:
		d.Kind = "pointer"
		elem := encodeType(*t.Elem)
		d.Elem = &elem
	case KindArray:
		d.Kind = "array"
		elem := encodeType(*t.Elem)
		d.Elem = &elem
	}
	return d
}

func decodeType(d typeDTO) (Type, error) {
	switch d.Kind {
	case "void":
		return Void, nil
	case "int":
		return IntType(d.Width), nil
	case "pointer":
		if d.Elem == nil {
			return Type{}, fmt.Errorf("ir: pointer type missing elem")
		}
		elem, err := decodeType(*d.Elem)
		if err != nil {
			return Type{}, err
		}
		return PointerTo(elem), nil
	case "array":
		if d.Elem == nil {
			return Type{}, fmt.Errorf("ir: array type missing elem")
		}
		elem, err := decodeType(*d.Elem)
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(elem, d.Len), nil
	default:
		return Type{}, fmt.Errorf("ir: unknown type kind %q", d.Kind)
	}
}

// constDTO is a tagged union over the constant Values a global's
// Initializer may hold: a byte blob, an integer, an array of nested
// constants, or a pointer to another global (the four shapes
// String-Encryption emits).
type constDTO struct {
	Kind string `json:"kind"`

	Bytes    []byte `json:"bytes,omitempty"`
	IsString bool   `json:"is_string,omitempty"`

	ElemType *typeDTO   `json:"elem_type,omitempty"`
	Elements []constDTO `json:"elements,omitempty"`

	GlobalRef string `json:"global_ref,omitempty"`

	IntType *typeDTO `json:"int_type,omitempty"`
	IntVal  uint64   `json:"int_val,omitempty"`
}

func encodeConst(v Value) (constDTO, error) {
	switch c := v.(type) {
	case *ConstantBytes:
		return constDTO{Kind: "bytes", Bytes: c.Data, IsString: c.IsString}, nil
	case *ConstantInt:
		t := encodeType(c.Typ)
		return constDTO{Kind: "int", IntType: &t, IntVal: c.Val}, nil
	case *ConstantGlobalPtr:
		return constDTO{Kind: "globalptr", GlobalRef: c.Global.Name}, nil
	case *ConstantArray:
		elems := make([]constDTO, len(c.Elements))
		for i, e := range c.Elements {
			ed, err := encodeConst(e)
			if err != nil {
				return constDTO{}, err
			}
			elems[i] = ed
		}
		et := encodeType(c.ElemType)
		return constDTO{Kind: "array", ElemType: &et, Elements: elems}, nil
	default:
		return constDTO{}, fmt.Errorf("ir: cannot serialize initializer of type %T", v)
	}
}

// decodeConst resolves a constDTO into a Value, looking up "globalptr"
// references against globals already created in the pass below.
func decodeConst(d constDTO, globalsByName map[string]*GlobalVariable) (Value, error) {
	switch d.Kind {
	case "bytes":
		return &ConstantBytes{Data: d.Bytes, IsString: d.IsString}, nil
	case "int":
		if d.IntType == nil {
			return nil, fmt.Errorf("ir: int constant missing int_type")
		}
		t, err := decodeType(*d.IntType)
		if err != nil {
			return nil, err
		}
		return NewConstantInt(t, d.IntVal), nil
	case "globalptr":
		gv, ok := globalsByName[d.GlobalRef]
		if !ok {
			return nil, fmt.Errorf("ir: globalptr references unknown global %q", d.GlobalRef)
		}
		return &ConstantGlobalPtr{Global: gv}, nil
	case "array":
		if d.ElemType == nil {
			return nil, fmt.Errorf("ir: array constant missing elem_type")
		}
		et, err := decodeType(*d.ElemType)
		if err != nil {
			return nil, err
		}
		elems := make([]Value, len(d.Elements))
		for i, ed := range d.Elements {
			v, err := decodeConst(ed, globalsByName)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &ConstantArray{ElemType: et, Elements: elems}, nil
	default:
		return nil, fmt.Errorf("ir: unknown constant kind %q", d.Kind)
	}
}

type globalDTO struct {
	Name       string    `json:"name"`
	IsConstant bool      `json:"is_constant,omitempty"`
	Section    string    `json:"section,omitempty"`
	Unnamed    bool      `json:"unnamed,omitempty"`
	Align      int       `json:"align,omitempty"`
	Init       *constDTO `json:"init,omitempty"`
}

type paramDTO struct {
	Name string  `json:"name"`
	Typ  typeDTO `json:"typ"`
}

// operandDTO references a Value used as an instruction operand: a
// self-contained constant, or a pointer to something defined elsewhere
// (a global by name, a parameter by name, or an earlier instruction by
// its id within the same function).
type operandDTO struct {
	Kind string `json:"kind"` // "const" | "global" | "param" | "inst"

	Const *constDTO `json:"const,omitempty"`

	Ref string `json:"ref,omitempty"` // global or param name

	InstID int `json:"inst_id,omitempty"`
}

type instDTO struct {
	ID        int          `json:"id"`
	Op        string       `json:"op"`
	Typ       typeDTO      `json:"typ"`
	Name      string       `json:"name,omitempty"`
	Operands  []operandDTO `json:"operands,omitempty"`
	Volatile  bool         `json:"volatile,omitempty"`
	AllocType *typeDTO     `json:"alloc_type,omitempty"`
	Targets   []string     `json:"targets,omitempty"` // block names, for Br/CondBr
	Align     int          `json:"align,omitempty"`
}

type blockDTO struct {
	Name         string    `json:"name"`
	Instructions []instDTO `json:"instructions"`
}

type functionDTO struct {
	Name       string     `json:"name"`
	Demangled  string     `json:"demangled,omitempty"`
	ReturnType typeDTO    `json:"return_type"`
	Params     []paramDTO `json:"params,omitempty"`
	Blocks     []blockDTO `json:"blocks,omitempty"`
}

type ctorDTO struct {
	Func     string `json:"func"`
	Priority int    `json:"priority"`
}

type moduleDTO struct {
	Name      string        `json:"name"`
	Globals   []globalDTO   `json:"globals,omitempty"`
	Functions []functionDTO `json:"functions,omitempty"`
	Ctors     []ctorDTO     `json:"ctors,omitempty"`
}

// ModuleToJSON serializes m into its on-disk representation.
func ModuleToJSON(m *Module) ([]byte, error) {
	dto := moduleDTO{Name: m.Name}

	for _, gv := range m.Globals {
		gd := globalDTO{
			Name:       gv.Name,
			IsConstant: gv.IsConstant,
			Section:    gv.Section,
			Unnamed:    gv.Unnamed,
			Align:      gv.Align,
		}
		if gv.Initializer != nil {
			cd, err := encodeConst(gv.Initializer)
			if err != nil {
				return nil, fmt.Errorf("ir: encoding global %q: %w", gv.Name, err)
			}
			gd.Init = &cd
		}
		dto.Globals = append(dto.Globals, gd)
	}

	for _, f := range m.Functions {
		fd, err := encodeFunction(f)
		if err != nil {
			return nil, fmt.Errorf("ir: encoding function %q: %w", f.Name, err)
		}
		dto.Functions = append(dto.Functions, fd)
	}

	for _, c := range m.Ctors {
		dto.Ctors = append(dto.Ctors, ctorDTO{Func: c.Func.Name, Priority: c.Priority})
	}

	return json.MarshalIndent(dto, "", "  ")
}

func encodeFunction(f *Function) (functionDTO, error) {
	fd := functionDTO{
		Name:       f.Name,
		Demangled:  f.Demangled,
		ReturnType: encodeType(f.ReturnType),
	}
	for _, p := range f.Params {
		fd.Params = append(fd.Params, paramDTO{Name: p.Name, Typ: encodeType(p.Typ)})
	}

	instID := map[*Instruction]int{}
	id := 0
	for _, bb := range f.Blocks {
		for _, inst := range bb.Instructions {
			instID[inst] = id
			id++
		}
	}

	paramByName := map[string]*Param{}
	for _, p := range f.Params {
		paramByName[p.Name] = p
	}

	for _, bb := range f.Blocks {
		bd := blockDTO{Name: bb.Name}
		for _, inst := range bb.Instructions {
			id, err := encodeInstruction(inst, instID)
			if err != nil {
				return functionDTO{}, err
			}
			bd.Instructions = append(bd.Instructions, id)
		}
		fd.Blocks = append(fd.Blocks, bd)
	}
	return fd, nil
}

func encodeInstruction(inst *Instruction, instID map[*Instruction]int) (instDTO, error) {
	id := instDTO{
		ID:       instID[inst],
		Op:       inst.Op.String(),
		Typ:      encodeType(inst.Typ),
		Name:     inst.Name,
		Volatile: inst.Volatile,
		Align:    inst.Align,
	}
	if inst.Op == OpAlloca {
		at := encodeType(inst.AllocType)
		id.AllocType = &at
	}
	for _, t := range inst.Targets {
		id.Targets = append(id.Targets, t.Name)
	}
	for _, v := range inst.Operands {
		od, err := encodeOperand(v, instID)
		if err != nil {
			return instDTO{}, err
		}
		id.Operands = append(id.Operands, od)
	}
	return id, nil
}

func encodeOperand(v Value, instID map[*Instruction]int) (operandDTO, error) {
	switch val := v.(type) {
	case *Instruction:
		return operandDTO{Kind: "inst", InstID: instID[val]}, nil
	case *Param:
		return operandDTO{Kind: "param", Ref: val.Name}, nil
	case *GlobalVariable:
		return operandDTO{Kind: "global", Ref: val.Name}, nil
	default:
		cd, err := encodeConst(v)
		if err != nil {
			return operandDTO{}, err
		}
		return operandDTO{Kind: "const", Const: &cd}, nil
	}
}

// ModuleFromJSON deserializes a module previously written by ModuleToJSON.
func ModuleFromJSON(data []byte) (*Module, error) {
	var dto moduleDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("ir: decoding module: %w", err)
	}

	m := NewModule(dto.Name)

	// Pass 1: create every global (empty initializer) so globalptr
	// constants can reference siblings regardless of declaration order.
	globalsByName := map[string]*GlobalVariable{}
	for _, gd := range dto.Globals {
		gv := &GlobalVariable{
			Name:       gd.Name,
			IsConstant: gd.IsConstant,
			Section:    gd.Section,
			Unnamed:    gd.Unnamed,
			Align:      gd.Align,
		}
		globalsByName[gd.Name] = gv
		m.AddGlobal(gv)
	}
	for _, gd := range dto.Globals {
		if gd.Init == nil {
			continue
		}
		v, err := decodeConst(*gd.Init, globalsByName)
		if err != nil {
			return nil, fmt.Errorf("ir: decoding global %q: %w", gd.Name, err)
		}
		globalsByName[gd.Name].Initializer = v
	}

	functionsByName := map[string]*Function{}
	for _, fd := range dto.Functions {
		f, err := decodeFunction(fd, globalsByName)
		if err != nil {
			return nil, fmt.Errorf("ir: decoding function %q: %w", fd.Name, err)
		}
		functionsByName[fd.Name] = f
		m.AddFunction(f)
	}

	for _, cd := range dto.Ctors {
		fn, ok := functionsByName[cd.Func]
		if !ok {
			return nil, fmt.Errorf("ir: ctor references unknown function %q", cd.Func)
		}
		m.AppendToGlobalCtors(fn, cd.Priority)
	}

	return m, nil
}

func decodeFunction(fd functionDTO, globalsByName map[string]*GlobalVariable) (*Function, error) {
	rt, err := decodeType(fd.ReturnType)
	if err != nil {
		return nil, err
	}
	f := &Function{Name: fd.Name, Demangled: fd.Demangled, ReturnType: rt}

	paramByName := map[string]*Param{}
	for _, pd := range fd.Params {
		pt, err := decodeType(pd.Typ)
		if err != nil {
			return nil, err
		}
		p := &Param{Name: pd.Name, Typ: pt}
		f.Params = append(f.Params, p)
		paramByName[pd.Name] = p
	}

	blocksByName := map[string]*BasicBlock{}
	instByID := map[int]*Instruction{}

	// Pass 1: create blocks and bare instruction shells, so operand and
	// branch-target references can resolve regardless of order.
	for _, bd := range fd.Blocks {
		bb := f.AppendBlock(bd.Name)
		blocksByName[bd.Name] = bb
		for _, id := range bd.Instructions {
			op, ok := opcodeByName[id.Op]
			if !ok {
				return nil, fmt.Errorf("ir: unknown opcode %q", id.Op)
			}
			typ, err := decodeType(id.Typ)
			if err != nil {
				return nil, err
			}
			inst := &Instruction{Op: op, Typ: typ, Name: id.Name, Volatile: id.Volatile, Align: id.Align, Parent: bb}
			if id.AllocType != nil {
				at, err := decodeType(*id.AllocType)
				if err != nil {
					return nil, err
				}
				inst.AllocType = at
			}
			bb.Instructions = append(bb.Instructions, inst)
			instByID[id.ID] = inst
		}
	}

	// Pass 2: wire operands and branch targets now that every
	// instruction and block in the function exists.
	for _, bd := range fd.Blocks {
		bb := blocksByName[bd.Name]
		for i, id := range bd.Instructions {
			inst := bb.Instructions[i]
			operands := make([]Value, len(id.Operands))
			for j, od := range id.Operands {
				v, err := decodeOperand(od, paramByName, instByID, globalsByName)
				if err != nil {
					return nil, err
				}
				operands[j] = v
			}
			AttachOperands(inst, operands)
			for _, tname := range id.Targets {
				target, ok := blocksByName[tname]
				if !ok {
					return nil, fmt.Errorf("ir: branch references unknown block %q", tname)
				}
				inst.Targets = append(inst.Targets, target)
			}
		}
	}

	return f, nil
}

func decodeOperand(od operandDTO, paramByName map[string]*Param, instByID map[int]*Instruction, globalsByName map[string]*GlobalVariable) (Value, error) {
	switch od.Kind {
	case "const":
		if od.Const == nil {
			return nil, fmt.Errorf("ir: const operand missing payload")
		}
		return decodeConst(*od.Const, globalsByName)
	case "param":
		p, ok := paramByName[od.Ref]
		if !ok {
			return nil, fmt.Errorf("ir: operand references unknown param %q", od.Ref)
		}
		return p, nil
	case "inst":
		inst, ok := instByID[od.InstID]
		if !ok {
			return nil, fmt.Errorf("ir: operand references unknown instruction id %d", od.InstID)
		}
		return inst, nil
	case "global":
		gv, ok := globalsByName[od.Ref]
		if !ok {
			return nil, fmt.Errorf("ir: operand references unknown global %q", od.Ref)
		}
		return gv, nil
	default:
		return nil, fmt.Errorf("ir: unknown operand kind %q", od.Kind)
	}
}
