// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import (
	"strconv"

	"github.com/ristretto-jvm/ristretto/classfile"
)

// NeedsFallback signals that the fast path cannot complete a single
// linear pass over the bytecode and the caller must retry with
// InferenceVerifier, per §4.6. It is not a verification failure.
type NeedsFallback struct {
	Reason string
	Offset int
}

func (e NeedsFallback) Error() string {
	return "fast path needs fallback at offset " + strconv.Itoa(e.Offset) + ": " + e.Reason
}

// FastPathVerifier implements the StackMapTable-driven single linear pass
// of §4.6: every merge point (branch target, exception handler, or an
// offset the StackMapTable names) must already carry a trusted anchor, so
// the verifier never needs to revisit an instruction.
type FastPathVerifier struct {
	Info           CodeInfo
	StackMap       DecodedStackMapTable
	ExceptionTable []classfile.ExceptionTableEntry
	Effects        Effects
	Trace          *Trace
}

// Run walks instructions once from index 0, threading a single current
// frame forward. It returns NeedsFallback the moment it meets a control
// edge that is not backed by a StackMapTable anchor.
func (v *FastPathVerifier) Run(initial *Frame, instructions []classfile.Instruction) error {
	current := initial.Clone()
	for i, in := range instructions {
		offset := v.Info.OffsetOf(i)

		if anchor, ok := v.StackMap.AtOffset(offset); ok && offset != 0 {
			if err := current.IsCompatibleWith(anchor, v.Effects.Ctx); err != nil {
				return Error{PC: offset, Err: err}
			}
			current = anchor.Clone()
		}

		if err := v.checkHandlerEdges(i, offset, current); err != nil {
			return err
		}

		if err := v.Effects.Apply(current, offset, in); err != nil {
			return Error{PC: offset, Err: err}
		}

		succ, err := v.Info.ComputeSuccessors(i, in)
		if err != nil {
			return Error{PC: offset, Err: err}
		}

		for _, target := range succ.Targets {
			targetOffset := v.Info.OffsetOf(target)
			anchor, ok := v.StackMap.AtOffset(targetOffset)
			if !ok {
				v.Trace.record(offset, "branch target has no stackmap anchor")
				return NeedsFallback{Reason: "branch target has no stackmap anchor", Offset: targetOffset}
			}
			if err := current.IsCompatibleWith(anchor, v.Effects.Ctx); err != nil {
				return Error{PC: targetOffset, Err: err}
			}
		}

		if succ.FallsThrough && i+1 < len(instructions) {
			nextOffset := v.Info.OffsetOf(i + 1)
			if _, ok := v.StackMap.AtOffset(nextOffset); !ok {
				// No anchor at the fall-through point: current frame simply
				// carries forward, which the next loop iteration handles.
				continue
			}
		}
	}
	return nil
}

// checkHandlerEdges verifies every exception handler whose protected
// range covers instruction i has a stackmap anchor compatible with a
// frame holding only the pre-instruction locals and the caught
// exception type on an otherwise empty stack, per §4.1's exception
// handler edges.
func (v *FastPathVerifier) checkHandlerEdges(i, offset int, current *Frame) error {
	for _, entry := range v.ExceptionTable {
		start, ok1 := v.Info.IndexAt(int(entry.Start))
		end := int(entry.End)
		if !ok1 {
			continue
		}
		endIdx, endIsBoundary := v.Info.IndexAt(end)
		inRange := i >= start && (endIsBoundary && i < endIdx || !endIsBoundary && offset < end)
		if !inRange {
			continue
		}
		handlerOffset := int(entry.Handler)
		anchor, ok := v.StackMap.AtOffset(handlerOffset)
		if !ok {
			v.Trace.record(offset, "exception handler has no stackmap anchor")
			return NeedsFallback{Reason: "exception handler has no stackmap anchor", Offset: handlerOffset}
		}
		excType := Object("java/lang/Throwable")
		if entry.CatchType != "" {
			excType = Object(entry.CatchType)
		}
		handlerFrame := NewFrame(current.maxLocals, current.maxStack)
		copy(handlerFrame.Locals, current.Locals)
		handlerFrame.ActiveLocals = current.ActiveLocals
		if err := handlerFrame.Push(excType); err != nil {
			return err
		}
		if err := handlerFrame.IsCompatibleWith(anchor, v.Effects.Ctx); err != nil {
			return Error{PC: handlerOffset, Err: err}
		}
	}
	return nil
}
