// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "github.com/ristretto-jvm/ristretto/classfile"

// CodeInfo indexes a method's bytecode two ways: instruction index to
// byte offset, and byte offset back to instruction index, per §4.1.
type CodeInfo struct {
	offsets    []int // offsets[i] = byte offset of instruction i
	indexAt    map[int]int
	codeLength int
}

// NewCodeInfo walks instructions, recording each one's byte offset.
func NewCodeInfo(instructions []classfile.Instruction) CodeInfo {
	offsets := make([]int, len(instructions))
	indexAt := make(map[int]int, len(instructions))
	off := 0
	for i, in := range instructions {
		offsets[i] = off
		indexAt[off] = i
		off += in.EncodedLength(off)
	}
	return CodeInfo{offsets: offsets, indexAt: indexAt, codeLength: off}
}

// InstructionCount returns the number of instructions indexed.
func (c CodeInfo) InstructionCount() int { return len(c.offsets) }

// CodeLength returns the offset just past the final instruction.
func (c CodeInfo) CodeLength() int { return c.codeLength }

// OffsetOf returns the byte offset of instruction index i.
func (c CodeInfo) OffsetOf(i int) int { return c.offsets[i] }

// IndexAt returns the instruction index at byte offset, or ok=false if
// offset is not an instruction boundary.
func (c CodeInfo) IndexAt(offset int) (index int, ok bool) {
	i, ok := c.indexAt[offset]
	return i, ok
}

// Successors is the result of compute_successors: the set of possible
// target instruction indices and whether control can additionally fall
// through to the next instruction.
type Successors struct {
	Targets      []int
	FallsThrough bool
}

// ComputeSuccessors returns the possible control-flow successors of the
// instruction at index i, per §4.1.
func (c CodeInfo) ComputeSuccessors(i int, in classfile.Instruction) (Successors, error) {
	offset := c.offsets[i]
	resolve := func(rel int32) (int, error) {
		target := offset + int(rel)
		idx, ok := c.IndexAt(target)
		if !ok {
			return 0, VerifyError{Msg: "branch target is not an instruction boundary"}
		}
		return idx, nil
	}

	switch in.Op {
	case classfile.OpGoto, classfile.OpGotoW:
		idx, err := resolve(in.BranchOffset)
		if err != nil {
			return Successors{}, err
		}
		return Successors{Targets: []int{idx}, FallsThrough: false}, nil

	case classfile.OpJsr, classfile.OpJsrW:
		idx, err := resolve(in.BranchOffset)
		if err != nil {
			return Successors{}, err
		}
		return Successors{Targets: []int{idx}, FallsThrough: false}, nil

	case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe, classfile.OpIfGt, classfile.OpIfLe,
		classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt, classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe,
		classfile.OpIfACmpEq, classfile.OpIfACmpNe, classfile.OpIfNull, classfile.OpIfNonNull:
		idx, err := resolve(in.BranchOffset)
		if err != nil {
			return Successors{}, err
		}
		return Successors{Targets: []int{idx}, FallsThrough: true}, nil

	case classfile.OpTableSwitch:
		targets := make([]int, 0, len(in.Offsets)+1)
		def, err := resolve(in.Default)
		if err != nil {
			return Successors{}, err
		}
		targets = append(targets, def)
		for _, rel := range in.Offsets {
			idx, err := resolve(rel)
			if err != nil {
				return Successors{}, err
			}
			targets = append(targets, idx)
		}
		return Successors{Targets: targets, FallsThrough: false}, nil

	case classfile.OpLookupSwitch:
		targets := make([]int, 0, len(in.Cases)+1)
		def, err := resolve(in.Default)
		if err != nil {
			return Successors{}, err
		}
		targets = append(targets, def)
		for _, c := range in.Cases {
			idx, err := resolve(c.Offset)
			if err != nil {
				return Successors{}, err
			}
			targets = append(targets, idx)
		}
		return Successors{Targets: targets, FallsThrough: false}, nil

	case classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn, classfile.OpDReturn,
		classfile.OpAReturn, classfile.OpReturn, classfile.OpAThrow, classfile.OpRet:
		return Successors{FallsThrough: false}, nil

	default:
		// Exception-raising calls (invoke*, array/field ops) are handled
		// as additional edges via the method's exception table, not here;
		// ordinary instructions simply fall through.
		return Successors{FallsThrough: true}, nil
	}
}

// ValidateExceptionTable requires every entry to reference instruction
// boundaries with Start < End and Handler within the code, per §4.1.
func ValidateExceptionTable(table []classfile.ExceptionTableEntry, info CodeInfo) error {
	for _, e := range table {
		if e.Start >= e.End {
			return VerifyError{Msg: "exception table entry has start >= end"}
		}
		if _, ok := info.IndexAt(int(e.Start)); !ok {
			return VerifyError{Msg: "exception table start is not an instruction boundary"}
		}
		if int(e.End) != info.CodeLength() {
			if _, ok := info.IndexAt(int(e.End)); !ok {
				return VerifyError{Msg: "exception table end is not an instruction boundary"}
			}
		}
		if _, ok := info.IndexAt(int(e.Handler)); !ok {
			return VerifyError{Msg: "exception table handler is not an instruction boundary"}
		}
	}
	return nil
}
