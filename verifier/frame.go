// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

// Frame is the pair of locals and operand stack at a single instruction,
// per §3/§4.2. Locals has fixed length maxLocals; Stack never exceeds
// maxStack entries.
type Frame struct {
	Locals []VerificationType
	Stack  []VerificationType

	// ActiveLocals is the length of the locals prefix that has been
	// explicitly written (as opposed to left at the implicit Top default).
	// StackMapDecoder's append/chop frames operate relative to this
	// prefix, per JVMS §4.7.4.
	ActiveLocals int

	maxLocals int
	maxStack  int
}

// NewFrame allocates a frame with maxLocals local slots, all Top, and an
// empty operand stack with capacity maxStack.
func NewFrame(maxLocals, maxStack int) *Frame {
	locals := make([]VerificationType, maxLocals)
	for i := range locals {
		locals[i] = Top
	}
	return &Frame{
		Locals:    locals,
		Stack:     make([]VerificationType, 0, maxStack),
		maxLocals: maxLocals,
		maxStack:  maxStack,
	}
}

// Clone returns an independent copy so the caller can mutate one branch's
// frame without disturbing another.
func (f *Frame) Clone() *Frame {
	locals := make([]VerificationType, len(f.Locals))
	copy(locals, f.Locals)
	stack := make([]VerificationType, len(f.Stack), cap(f.Stack))
	copy(stack, f.Stack)
	return &Frame{Locals: locals, Stack: stack, ActiveLocals: f.ActiveLocals, maxLocals: f.maxLocals, maxStack: f.maxStack}
}

// Push pushes a single-slot type, failing with StackOverflow if the
// result would exceed maxStack.
func (f *Frame) Push(t VerificationType) error {
	if len(f.Stack) >= f.maxStack {
		return StackOverflow{MaxStack: f.maxStack}
	}
	f.Stack = append(f.Stack, t)
	return nil
}

// PushCategory2 pushes a Long or Double, occupying two stack slots (the
// type itself, then Top as the upper half).
func (f *Frame) PushCategory2(t VerificationType) error {
	if len(f.Stack)+2 > f.maxStack {
		return StackOverflow{MaxStack: f.maxStack}
	}
	f.Stack = append(f.Stack, t, Top)
	return nil
}

// Pop pops a single-slot type, failing with StackUnderflow if empty.
func (f *Frame) Pop() (VerificationType, error) {
	if len(f.Stack) == 0 {
		return VerificationType{}, StackUnderflow{}
	}
	t := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return t, nil
}

// PopCategory2 pops a category-2 type, asserting the upper slot is Top.
func (f *Frame) PopCategory2() (VerificationType, error) {
	if len(f.Stack) < 2 {
		return VerificationType{}, StackUnderflow{}
	}
	upper := f.Stack[len(f.Stack)-1]
	if upper.Kind != KindTop {
		return VerificationType{}, VerifyError{Msg: "expected category-2 upper half to be Top, got " + upper.String()}
	}
	t := f.Stack[len(f.Stack)-2]
	f.Stack = f.Stack[:len(f.Stack)-2]
	return t, nil
}

// SetLocal sets a single-slot local, bounds-checked against maxLocals.
func (f *Frame) SetLocal(i int, t VerificationType) error {
	if i < 0 || i >= f.maxLocals {
		return VerifyError{Msg: "local variable index out of range"}
	}
	f.Locals[i] = t
	if i+1 > f.ActiveLocals {
		f.ActiveLocals = i + 1
	}
	return nil
}

// SetLocalCategory2 sets a category-2 local occupying slots i and i+1.
func (f *Frame) SetLocalCategory2(i int, t VerificationType) error {
	if i < 0 || i+1 >= f.maxLocals {
		return VerifyError{Msg: "local variable index out of range"}
	}
	f.Locals[i] = t
	f.Locals[i+1] = Top
	if i+2 > f.ActiveLocals {
		f.ActiveLocals = i + 2
	}
	return nil
}

// GetLocal reads a single-slot local.
func (f *Frame) GetLocal(i int) (VerificationType, error) {
	if i < 0 || i >= f.maxLocals {
		return VerificationType{}, VerifyError{Msg: "local variable index out of range"}
	}
	return f.Locals[i], nil
}

// GetLocalCategory2 reads a category-2 local, asserting the upper slot is Top.
func (f *Frame) GetLocalCategory2(i int) (VerificationType, error) {
	if i < 0 || i+1 >= f.maxLocals {
		return VerificationType{}, VerifyError{Msg: "local variable index out of range"}
	}
	if f.Locals[i+1].Kind != KindTop {
		return VerificationType{}, VerifyError{Msg: "expected category-2 upper half to be Top"}
	}
	return f.Locals[i], nil
}

// ReplaceUninitialized replaces every stack and local occurrence of the
// uninitialized type produced by `new` at newOffset (or
// UninitializedThis when newOffset < 0) with initialized, per the
// invokespecial <init> semantics in §4.5.
func (f *Frame) ReplaceUninitialized(newOffset int, initialized VerificationType) {
	matches := func(t VerificationType) bool {
		if newOffset < 0 {
			return t.Kind == KindUninitializedThis
		}
		return t.Kind == KindUninitialized && t.NewOffset == newOffset
	}
	for i, t := range f.Stack {
		if matches(t) {
			f.Stack[i] = initialized
		}
	}
	for i, t := range f.Locals {
		if matches(t) {
			f.Locals[i] = initialized
		}
	}
}

// Merge computes the slot-wise LUB of f and other in place on f,
// returning changed=true if any slot widened. Stack depth mismatch is a
// VerifyError: the JVMS requires identical stack shape at every merge
// point.
func (f *Frame) Merge(other *Frame, ctx Context) (changed bool, err error) {
	if len(f.Stack) != len(other.Stack) {
		return false, VerifyError{Msg: "stack depth mismatch at merge"}
	}
	for i := range f.Stack {
		merged, c := MergeOne(f.Stack[i], other.Stack[i], ctx)
		if c {
			f.Stack[i] = merged
			changed = true
		}
	}
	for i := range f.Locals {
		merged, c := MergeOne(f.Locals[i], other.Locals[i], ctx)
		if c {
			f.Locals[i] = merged
			changed = true
		}
	}
	return changed, nil
}

// IsCompatibleWith validates f (the computed frame) against anchor (a
// trusted StackMapTable frame or handler frame), per §4.6's "Compatibility
// check at an anchor": equal stack depth, and every slot assignable.
func (f *Frame) IsCompatibleWith(anchor *Frame, ctx Context) error {
	if len(f.Stack) != len(anchor.Stack) {
		return VerifyError{Msg: "stack depth does not match stackmap frame"}
	}
	for i := range anchor.Stack {
		if anchor.Stack[i].Kind == KindTop {
			continue
		}
		if !IsAssignableTo(anchor.Stack[i], f.Stack[i], ctx) {
			return VerifyError{Msg: "stack slot " + f.Stack[i].String() + " not assignable to " + anchor.Stack[i].String()}
		}
	}
	for i := range anchor.Locals {
		if anchor.Locals[i].Kind == KindTop {
			continue
		}
		if !IsAssignableTo(anchor.Locals[i], f.Locals[i], ctx) {
			return VerifyError{Msg: "local slot " + f.Locals[i].String() + " not assignable to " + anchor.Locals[i].String()}
		}
	}
	return nil
}
