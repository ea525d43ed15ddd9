// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "fmt"

// VerifyError is a type or structural violation: merge incompatibility,
// stack under/overflow, a stackmap offset that isn't an instruction
// boundary, use of an uninitialized value, or a bad return type.
type VerifyError struct {
	Msg string
}

func (e VerifyError) Error() string {
	return "verify error: " + e.Msg
}

// StackOverflow is returned when a push would exceed max_stack.
type StackOverflow struct {
	MaxStack int
}

func (e StackOverflow) Error() string {
	return fmt.Sprintf("verify error: operand stack overflow (max_stack=%d)", e.MaxStack)
}

// StackUnderflow is returned when a pop is attempted on an empty stack.
type StackUnderflow struct{}

func (e StackUnderflow) Error() string {
	return "verify error: operand stack underflow"
}

// InternalError signals a contract violation in the verifier itself —
// an opcode reaching the dispatch default case, an index computed out of
// bounds by the verifier's own bookkeeping — never a property of the
// input bytecode.
type InternalError struct {
	Msg string
}

func (e InternalError) Error() string {
	return "internal verifier error: " + e.Msg
}

// Error wraps a fatal verification failure with the method location it
// occurred in, per §7's "first fatal error with the method location".
type Error struct {
	Class      string
	Method     string
	Descriptor string
	PC         int
	Err        error
}

func (e Error) Error() string {
	return fmt.Sprintf("%s.%s%s at pc=%d: %v", e.Class, e.Method, e.Descriptor, e.PC, e.Err)
}

func (e Error) Unwrap() error { return e.Err }
