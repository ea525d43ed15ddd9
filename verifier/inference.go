// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "github.com/ristretto-jvm/ristretto/classfile"

// InferenceVerifier is the worklist dataflow fallback of §4.7: it makes
// no assumption about StackMapTable coverage and instead computes a
// fixpoint by repeatedly merging frames at every instruction reachable
// from the entry point, including every offset covered by an exception
// handler.
type InferenceVerifier struct {
	Info           CodeInfo
	StackMap       DecodedStackMapTable
	ExceptionTable []classfile.ExceptionTableEntry
	Effects        Effects
}

// Run computes the dataflow fixpoint starting from initial at
// instruction 0 and returns the first fatal type error encountered, or
// nil if every reachable instruction type-checks. Every stackmap-anchored
// index is pre-populated with its trusted frame before the worklist
// starts, per §4.7, so a partially-trustworthy table still seeds the
// fixpoint instead of being ignored.
func (v *InferenceVerifier) Run(initial *Frame, instructions []classfile.Instruction) error {
	n := len(instructions)
	frames := make([]*Frame, n)
	queue := make([]int, 0, n)
	queued := make([]bool, n)

	enqueue := func(i int, f *Frame) error {
		if frames[i] == nil {
			frames[i] = f
			if !queued[i] {
				queue = append(queue, i)
				queued[i] = true
			}
			return nil
		}
		changed, err := frames[i].Merge(f, v.Effects.Ctx)
		if err != nil {
			return Error{PC: v.Info.OffsetOf(i), Err: err}
		}
		if changed && !queued[i] {
			queue = append(queue, i)
			queued[i] = true
		}
		return nil
	}

	for _, anchor := range v.StackMap.Anchors {
		idx, ok := v.Info.IndexAt(anchor.Offset)
		if !ok {
			continue
		}
		if err := enqueue(idx, anchor.Frame.Clone()); err != nil {
			return err
		}
	}

	if err := enqueue(0, initial.Clone()); err != nil {
		return err
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false

		in := instructions[i]
		offset := v.Info.OffsetOf(i)
		current := frames[i].Clone()

		if err := v.handlerEdges(i, offset, current, enqueue); err != nil {
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
			if err := enqueue(target, current.Clone()); err != nil {
				return err
			}
		}
		if succ.FallsThrough && i+1 < n {
			if err := enqueue(i+1, current.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

// handlerEdges propagates a handler frame (the instruction's pre-effect
// locals, plus the caught exception type as the sole stack entry) to
// every exception handler protecting instruction i.
func (v *InferenceVerifier) handlerEdges(i, offset int, current *Frame, enqueue func(int, *Frame) error) error {
	for _, entry := range v.ExceptionTable {
		start, ok1 := v.Info.IndexAt(int(entry.Start))
		if !ok1 {
			continue
		}
		end := int(entry.End)
		endIdx, endIsBoundary := v.Info.IndexAt(end)
		inRange := i >= start && (endIsBoundary && i < endIdx || !endIsBoundary && offset < end)
		if !inRange {
			continue
		}
		handlerIdx, ok := v.Info.IndexAt(int(entry.Handler))
		if !ok {
			return Error{PC: offset, Err: VerifyError{Msg: "exception handler is not an instruction boundary"}}
		}
		excType := Object("java/lang/Throwable")
		if entry.CatchType != "" {
			excType = Object(entry.CatchType)
		}
		handler := NewFrame(current.maxLocals, current.maxStack)
		copy(handler.Locals, current.Locals)
		handler.ActiveLocals = current.ActiveLocals
		if err := handler.Push(excType); err != nil {
			return err
		}
		if err := enqueue(handlerIdx, handler); err != nil {
			return err
		}
	}
	return nil
}
