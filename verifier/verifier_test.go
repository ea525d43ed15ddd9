// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import (
	"errors"
	"testing"

	"github.com/ristretto-jvm/ristretto/classfile"
)

// buildPool returns a constant pool with one Class entry (#2, "Main") and
// one Methodref (#6) to Main.<init>()V, enough for the new/invokespecial
// sequence tests below.
func buildPool() *classfile.ConstantPool {
	entries := make([]classfile.Constant, 7)
	entries[1] = classfile.Constant{Tag: classfile.TagUTF8, UTF8: "Main"}
	entries[2] = classfile.Constant{Tag: classfile.TagClass, NameIndex: 1}
	entries[3] = classfile.Constant{Tag: classfile.TagUTF8, UTF8: "<init>"}
	entries[4] = classfile.Constant{Tag: classfile.TagUTF8, UTF8: "()V"}
	entries[5] = classfile.Constant{Tag: classfile.TagNameAndType, NameIndex: 3, DescriptorIndex: 4}
	entries[6] = classfile.Constant{Tag: classfile.TagMethodref, ClassIndex: 2, NameAndTypeIndex: 5}
	return classfile.NewConstantPool(entries)
}

func addMethod() classfile.Method {
	return classfile.Method{
		Name:       "add",
		Descriptor: "(II)I",
		Code: &classfile.Code{
			MaxLocals: 3,
			MaxStack:  2,
			Instructions: []classfile.Instruction{
				{Op: classfile.OpILoad, Index: 1},
				{Op: classfile.OpILoad, Index: 2},
				{Op: classfile.OpIAdd},
				{Op: classfile.OpIReturn},
			},
		},
	}
}

func TestVerifySimpleAdd(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	ctx := newFakeContext()
	outcome, err := Verify(cf, addMethod(), ctx, DefaultConfig, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !outcome.UsedFastPath {
		t.Errorf("expected the fast path to suffice for a branch-free method")
	}
}

func TestVerifyStackUnderflow(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:       "bad",
		Descriptor: "()I",
		Code: &classfile.Code{
			MaxLocals:    1,
			MaxStack:     1,
			Instructions: []classfile.Instruction{{Op: classfile.OpIReturn}},
		},
	}
	_, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil)
	if err == nil {
		t.Fatal("expected a stack underflow error")
	}
	var verr Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected an Error wrapping the location, got %T: %v", err, err)
	}
	if !errors.As(verr.Err, new(StackUnderflow)) {
		t.Errorf("expected StackUnderflow, got %v", verr.Err)
	}
}

func TestVerifyReturnTypeMismatch(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:       "bad",
		Descriptor: "()I",
		Code: &classfile.Code{
			MaxLocals: 1,
			MaxStack:  1,
			Instructions: []classfile.Instruction{
				{Op: classfile.OpAConstNull},
				{Op: classfile.OpAReturn},
			},
		},
	}
	if _, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil); err == nil {
		t.Fatal("expected a return-type mismatch error for areturn in an int method")
	}
}

func TestVerifyNativeMethodWithCodeIsFormatError(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:        "native",
		Descriptor:  "()V",
		AccessFlags: classfile.AccNative,
		Code:        &classfile.Code{MaxLocals: 1, MaxStack: 1},
	}
	_, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil)
	if err == nil {
		t.Fatal("expected a format error")
	}
	var fe classfile.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected classfile.FormatError, got %T: %v", err, err)
	}
}

func TestVerifyAbstractMethodWithoutCodeSucceeds(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{Name: "m", Descriptor: "()V", AccessFlags: classfile.AccAbstract}
	if _, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// TestVerifyConstructorChain exercises new + dup + invokespecial <init>,
// the mechanism that turns an Uninitialized(offset) type into a usable
// Object(Main) — §4.5's most delicate piece of dataflow.
func TestVerifyConstructorChain(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:       "make",
		Descriptor: "()LMain;",
		Code: &classfile.Code{
			MaxLocals: 1,
			MaxStack:  2,
			Instructions: []classfile.Instruction{
				{Op: classfile.OpNew, Index: 2},
				{Op: classfile.OpDup},
				{Op: classfile.OpInvokeSpecial, Index: 6},
				{Op: classfile.OpAReturn},
			},
		},
	}
	outcome, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !outcome.UsedFastPath {
		t.Errorf("expected the fast path to suffice for a branch-free constructor chain")
	}
}

// TestVerifyReturnBeforeInitFails confirms that returning the
// Uninitialized value `new` produced, before any invokespecial <init> has
// initialized it, is rejected.
func TestVerifyReturnBeforeInitFails(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:       "make",
		Descriptor: "()LMain;",
		Code: &classfile.Code{
			MaxLocals:    1,
			MaxStack:     2,
			Instructions: []classfile.Instruction{{Op: classfile.OpNew, Index: 2}, {Op: classfile.OpAReturn}},
		},
	}
	if _, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil); err == nil {
		t.Fatal("expected areturn of an Uninitialized value to fail")
	}
}

func TestVerifyBranchWithoutStackMapFallsBack(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	// if (a != 0) return 1; else return 0; compiled without a StackMapTable,
	// forcing the fast path to hand off to InferenceVerifier. Byte offsets:
	// 0: iload 1 (2 bytes), 2: ifeq +5 -> target 7, 5: iconst_1, 6: ireturn,
	// 7: iconst_0, 8: ireturn.
	m := classfile.Method{
		Name:       "sign",
		Descriptor: "(I)I",
		Code: &classfile.Code{
			MaxLocals: 2,
			MaxStack:  1,
			Instructions: []classfile.Instruction{
				{Op: classfile.OpILoad, Index: 1},
				{Op: classfile.OpIfEq, BranchOffset: 5},
				{Op: classfile.OpIConst1},
				{Op: classfile.OpIReturn},
				{Op: classfile.OpIConst0},
				{Op: classfile.OpIReturn},
			},
		},
	}
	outcome, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if outcome.UsedFastPath {
		t.Errorf("expected a stackmap-free branch to require the inference fallback")
	}
}

// TestVerifyExceptionHandlerStoresCaughtReference drives a try/catch
// method with no StackMapTable through the inference fallback (a handler
// with no anchor forces NeedsFallback) and checks the handler block,
// which stores the caught reference into a local, type-checks against a
// frame built with the method's real local/stack capacity.
func TestVerifyExceptionHandlerStoresCaughtReference(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:        "trycatch",
		Descriptor:  "()V",
		AccessFlags: classfile.AccStatic,
		Code: &classfile.Code{
			MaxLocals: 1,
			MaxStack:  1,
			Instructions: []classfile.Instruction{
				{Op: classfile.OpNop},             // offset 0, protected
				{Op: classfile.OpReturn},           // offset 1, end of try
				{Op: classfile.OpAStore, Index: 0}, // offset 2, handler
				{Op: classfile.OpReturn},           // offset 4
			},
			ExceptionTable: []classfile.ExceptionTableEntry{
				{Start: 0, End: 1, Handler: 2, CatchType: ""},
			},
		},
	}
	outcome, err := Verify(cf, m, newFakeContext(), DefaultConfig, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if outcome.UsedFastPath {
		t.Errorf("expected an unanchored exception handler to require the inference fallback")
	}
}

func TestVerifyBranchWithoutStackMapStrictRejects(t *testing.T) {
	cf := &classfile.ClassFile{ThisClass: "Main", ConstantPool: buildPool()}
	m := classfile.Method{
		Name:       "sign",
		Descriptor: "(I)I",
		Code: &classfile.Code{
			MaxLocals: 2,
			MaxStack:  1,
			Instructions: []classfile.Instruction{
				{Op: classfile.OpILoad, Index: 1},
				{Op: classfile.OpIfEq, BranchOffset: 5},
				{Op: classfile.OpIConst1},
				{Op: classfile.OpIReturn},
				{Op: classfile.OpIConst0},
				{Op: classfile.OpIReturn},
			},
		},
	}
	cfg := Config{StrictStackMapRequired: true}
	if _, err := Verify(cf, m, newFakeContext(), cfg, nil); err == nil {
		t.Fatal("expected strict mode to reject a branch without a stackmap anchor")
	}
}
