// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classreader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ristretto-jvm/ristretto/classfile"
)

// classBuilder assembles a minimal well-formed classfile byte by byte, the
// way a hand-rolled fixture needs to when there's no assembler to lean on.
type classBuilder struct {
	buf bytes.Buffer
}

func (b *classBuilder) u8(v byte)   { b.buf.WriteByte(v) }
func (b *classBuilder) u16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
}
func (b *classBuilder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}
func (b *classBuilder) utf8(s string) {
	b.u8(byte(classfile.TagUTF8))
	b.u16(uint16(len(s)))
	b.buf.WriteString(s)
}
func (b *classBuilder) class(nameIdx uint16) {
	b.u8(byte(classfile.TagClass))
	b.u16(nameIdx)
}

// buildMinimalClass returns a class with one method, m()V, whose Code
// attribute is a single `return`. Constant pool:
//
//	#1 Utf8 "Main", #2 Class #1, #3 Utf8 "m", #4 Utf8 "()V", #5 Utf8 "Code"
func buildMinimalClass() []byte {
	var b classBuilder
	b.u32(0xCAFEBABE)
	b.u16(0)  // minor
	b.u16(52) // major

	b.u16(6) // constant_pool_count = highest index + 1
	b.utf8("Main")
	b.class(1)
	b.utf8("m")
	b.utf8("()V")
	b.utf8("Code")

	b.u16(0) // access_flags
	b.u16(2) // this_class
	b.u16(0) // super_class
	b.u16(0) // interfaces_count
	b.u16(0) // fields_count

	b.u16(1) // methods_count
	b.u16(0) // method access_flags
	b.u16(3) // name_index ("m")
	b.u16(4) // descriptor_index ("()V")
	b.u16(1) // attributes_count

	var code classBuilder
	code.u16(0)              // max_stack
	code.u16(0)              // max_locals
	code.u32(1)               // code_length
	code.u8(byte(classfile.OpReturn))
	code.u16(0) // exception_table_length
	code.u16(0) // attributes_count

	b.u16(5) // attribute_name_index ("Code")
	codeBytes := code.buf.Bytes()
	b.u32(uint32(len(codeBytes)))
	b.buf.Write(codeBytes)

	b.u16(0) // class attributes_count

	return b.buf.Bytes()
}

func TestReadMinimalClass(t *testing.T) {
	cf, err := Read(bytes.NewReader(buildMinimalClass()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cf.ThisClass != "Main" {
		t.Errorf("ThisClass = %q, want Main", cf.ThisClass)
	}
	if cf.MajorVersion != 52 {
		t.Errorf("MajorVersion = %d, want 52", cf.MajorVersion)
	}
	if len(cf.Methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(cf.Methods))
	}
	m := cf.Methods[0]
	if m.Name != "m" || m.Descriptor != "()V" {
		t.Errorf("method = %s%s, want m()V", m.Name, m.Descriptor)
	}
	if m.Code == nil {
		t.Fatal("method has no Code attribute")
	}
	if len(m.Code.Instructions) != 1 || m.Code.Instructions[0].Op != classfile.OpReturn {
		t.Errorf("instructions = %+v, want a single return", m.Code.Instructions)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	data := buildMinimalClass()
	data[0] = 0x00
	if _, err := Read(bytes.NewReader(data)); err == nil {
		t.Fatal("expected an error for a bad magic number")
	}
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	data := buildMinimalClass()
	if _, err := Read(bytes.NewReader(data[:len(data)-10])); err == nil {
		t.Fatal("expected an error for a truncated classfile")
	}
}

// buildClassWithStackMap wraps buildMinimalClass's shape but gives the
// method a branch and a StackMapTable with a single same_frame entry, to
// exercise readStackMapTable end to end.
func buildClassWithStackMap() []byte {
	var b classBuilder
	b.u32(0xCAFEBABE)
	b.u16(0)
	b.u16(52)

	b.u16(7)
	b.utf8("Main")
	b.class(1)
	b.utf8("m")
	b.utf8("(I)I")
	b.utf8("Code")
	b.utf8("StackMapTable")

	b.u16(0)
	b.u16(2)
	b.u16(0)
	b.u16(0)
	b.u16(0)

	b.u16(1)
	b.u16(0)
	b.u16(3)
	b.u16(4)
	b.u16(1)

	// Instruction boundaries: 0:iload(2) 2:ifeq(3) 5:iconst_0(1) 6:ireturn(1)
	// 7:iconst_1(1) 8:ireturn(1). ifeq sits at pc 2 and branches to pc 7
	// (iconst_1), so its offset operand is 7-2 = 5.
	codeOps := []byte{
		0x15, 0x00, // iload 0, pc 0
		0x99, 0, 5, // ifeq +5 -> pc 7, pc 2
		0x03, // iconst_0, pc 5
		0xac, // ireturn, pc 6
		0x04, // iconst_1, pc 7
		0xac, // ireturn, pc 8
	}

	var code classBuilder
	code.u16(1) // max_stack
	code.u16(1) // max_locals
	code.u32(uint32(len(codeOps)))
	code.buf.Write(codeOps)
	code.u16(0) // exception_table_length

	code.u16(1) // code attributes_count
	code.u16(6) // attribute_name_index ("StackMapTable")
	var smt classBuilder
	smt.u16(1)  // number_of_entries
	smt.u8(7)   // same_frame, offset_delta = 7 (frame_type itself), targets pc 7
	smtBytes := smt.buf.Bytes()
	code.u32(uint32(len(smtBytes)))
	code.buf.Write(smtBytes)

	b.u16(5)
	codeBytes := code.buf.Bytes()
	b.u32(uint32(len(codeBytes)))
	b.buf.Write(codeBytes)

	b.u16(0)
	return b.buf.Bytes()
}

func TestReadDecodesStackMapTable(t *testing.T) {
	cf, err := Read(bytes.NewReader(buildClassWithStackMap()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	m := cf.Methods[0]
	if len(m.Code.StackMapTable) != 1 {
		t.Fatalf("got %d stackmap frames, want 1", len(m.Code.StackMapTable))
	}
	frame := m.Code.StackMapTable[0]
	if frame.FrameType != 7 || frame.OffsetDelta != 7 {
		t.Errorf("frame = %+v, want same_frame with offset_delta 7", frame)
	}
}
