// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classfile models the minimal slice of the JVM classfile format
// that the bytecode verifier consumes: constant pool lookups, a method's
// Code attribute (instructions, exception table, StackMapTable), and
// descriptor parsing. It is not a classfile reader/writer — parsing the
// on-disk binary format is an external collaborator's job (see
// Package gc for the other half of the core; cmd/ristretto-verify shows
// how a minimal on-disk reader plugs into this package).
package classfile

// ExceptionTableEntry describes one entry of a Code attribute's exception
// table: the [Start, End) instruction range protected by Handler, and the
// CatchType class name ("" means catch-all, matching catch_type == 0).
type ExceptionTableEntry struct {
	Start      uint16
	End        uint16
	Handler    uint16
	CatchType  string
}

// RawStackMapFrame is one on-disk StackMapTable entry before decoding,
// matching the compact tag scheme in JVMS §4.7.4.
type RawStackMapFrame struct {
	// FrameType is the raw tag byte (0-255) that selects the frame kind.
	FrameType byte
	// OffsetDelta is interpreted relative to the previous frame (or -1 for
	// the first frame), per the on-disk encoding.
	OffsetDelta uint16
	// Locals/Stack carry the verification-type descriptors for
	// append/full frames; Stack alone is used for same-locals-1-stack-item.
	Locals []VerificationTypeInfo
	Stack  []VerificationTypeInfo
	// ChopCount is populated for chop frames (types 248-250).
	ChopCount int
}

// VerificationTypeInfo is the on-disk encoding of a single verification
// type: a tag in {0..8} plus, for Object/Uninitialized, an operand.
type VerificationTypeInfo struct {
	Tag byte
	// CPoolIndex is populated when Tag == 7 (Object): a Class constant.
	CPoolIndex uint16
	// Offset is populated when Tag == 8 (Uninitialized): the offset of
	// the `new` instruction.
	Offset uint16
}

// On-disk verification type tags, matching §6's required bit compatibility.
const (
	VTTop               byte = 0
	VTInteger           byte = 1
	VTFloat             byte = 2
	VTDouble            byte = 3
	VTLong              byte = 4
	VTNull              byte = 5
	VTUninitializedThis byte = 6
	VTObject            byte = 7
	VTUninitialized     byte = 8
)

// Code is the Code attribute of a method: its bytecode, stack/locals
// capacity, exception table, and optional StackMapTable.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Instructions   []Instruction
	ExceptionTable []ExceptionTableEntry
	// StackMapTable is nil when the attribute is absent.
	StackMapTable []RawStackMapFrame
}

// MethodAccessFlags mirrors the subset of access_flags the verifier reads.
type MethodAccessFlags uint16

const (
	AccStatic   MethodAccessFlags = 0x0008
	AccNative   MethodAccessFlags = 0x0100
	AccAbstract MethodAccessFlags = 0x0400
)

// Method is the minimal method view the verifier consumes.
type Method struct {
	Name        string
	Descriptor  string
	AccessFlags MethodAccessFlags
	// Code is nil for native/abstract methods.
	Code *Code
}

// ClassFile is the minimal classfile view the verifier consumes.
type ClassFile struct {
	ThisClass    string
	MajorVersion uint16
	ConstantPool *ConstantPool
	Methods      []Method
}

// ConstantPoolResolver is the slice of ConstantPool the instruction
// effects need: resolving references encountered mid-bytecode.
type ConstantPoolResolver interface {
	TryGetUTF8(index uint16) (string, error)
	TryGetClass(index uint16) (string, error)
	TryGetFieldRef(index uint16) (FieldRef, error)
	TryGetMethodRef(index uint16) (MethodRef, error)
	TryGetLoadableType(index uint16) (Tag, error)
}

var _ ConstantPoolResolver = (*ConstantPool)(nil)
