// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classreader

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/ristretto-jvm/ristretto/classfile"
)

const (
	classMagic = 0xCAFEBABE
	codeAttribute          = "Code"
	stackMapTableAttribute = "StackMapTable"
)

// FormatError reports a malformed or truncated classfile.
type FormatError struct {
	Msg string
}

func (e FormatError) Error() string { return "classreader: " + e.Msg }

// Read decodes a complete classfile from r into the verifier's
// classfile.ClassFile view. Attributes the verifier has no use for
// (LineNumberTable, annotations, BootstrapMethods, and so on) are read
// past but discarded.
func Read(r io.Reader) (*classfile.ClassFile, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, FormatError{Msg: "bad magic number"}
	}
	if _, err := readU16(r); err != nil { // minor_version
		return nil, err
	}
	major, err := readU16(r)
	if err != nil {
		return nil, err
	}

	pool, rawEntries, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	if _, err := readU16(r); err != nil { // access_flags
		return nil, err
	}
	thisClassIdx, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if _, err := readU16(r); err != nil { // super_class
		return nil, err
	}

	ifaceCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if err := skip(r, int(ifaceCount)*2); err != nil {
		return nil, err
	}

	if err := skipMembers(r); err != nil { // fields
		return nil, err
	}

	methods, err := readMethods(r, pool, rawEntries)
	if err != nil {
		return nil, err
	}

	if err := skipAttributes(r); err != nil { // class attributes
		return nil, err
	}

	thisClass, err := pool.TryGetClass(thisClassIdx)
	if err != nil {
		return nil, err
	}

	return &classfile.ClassFile{
		ThisClass:    thisClass,
		MajorVersion: major,
		ConstantPool: pool,
		Methods:      methods,
	}, nil
}

// readConstantPool decodes the constant_pool array. rawEntries is the
// same entry slice the returned pool wraps; readMethods receives it but
// resolves names and descriptors through the pool, and StackMapTable
// Object entries keep their raw constant pool index.
func readConstantPool(r io.Reader) (*classfile.ConstantPool, []classfile.Constant, error) {
	count, err := readU16(r)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]classfile.Constant, count)
	for i := 1; i < int(count); i++ {
		tag, err := readU8(r)
		if err != nil {
			return nil, nil, err
		}
		c := classfile.Constant{Tag: classfile.Tag(tag)}
		switch classfile.Tag(tag) {
		case classfile.TagUTF8:
			length, err := readU16(r)
			if err != nil {
				return nil, nil, err
			}
			raw, err := readBytes(r, int(length))
			if err != nil {
				return nil, nil, err
			}
			c.UTF8 = string(raw)
		case classfile.TagInteger:
			v, err := readU32(r)
			if err != nil {
				return nil, nil, err
			}
			c.Int = int32(v)
		case classfile.TagFloat:
			v, err := readU32(r)
			if err != nil {
				return nil, nil, err
			}
			c.Float = math.Float32frombits(v)
		case classfile.TagLong:
			v, err := readU64(r)
			if err != nil {
				return nil, nil, err
			}
			c.Long = int64(v)
			entries[i] = c
			i++ // long/double occupy two pool slots
			continue
		case classfile.TagDouble:
			v, err := readU64(r)
			if err != nil {
				return nil, nil, err
			}
			c.Double = math.Float64frombits(v)
			entries[i] = c
			i++
			continue
		case classfile.TagClass:
			idx, err := readU16(r)
			if err != nil {
				return nil, nil, err
			}
			c.NameIndex = idx
		case classfile.TagString:
			if _, err := readU16(r); err != nil { // string_index, unresolved
				return nil, nil, err
			}
		case classfile.TagFieldref, classfile.TagMethodref, classfile.TagInterfaceMethodref:
			classIdx, err := readU16(r)
			if err != nil {
				return nil, nil, err
			}
			natIdx, err := readU16(r)
			if err != nil {
				return nil, nil, err
			}
			c.ClassIndex = classIdx
			c.NameAndTypeIndex = natIdx
		case classfile.TagNameAndType:
			nameIdx, err := readU16(r)
			if err != nil {
				return nil, nil, err
			}
			descIdx, err := readU16(r)
			if err != nil {
				return nil, nil, err
			}
			c.NameIndex = nameIdx
			c.DescriptorIndex = descIdx
		case classfile.TagMethodHandle:
			if _, err := readU8(r); err != nil { // reference_kind
				return nil, nil, err
			}
			if _, err := readU16(r); err != nil { // reference_index
				return nil, nil, err
			}
		case classfile.TagMethodType:
			if _, err := readU16(r); err != nil { // descriptor_index
				return nil, nil, err
			}
		case classfile.TagInvokeDynamic:
			if _, err := readU16(r); err != nil { // bootstrap_method_attr_index
				return nil, nil, err
			}
			if _, err := readU16(r); err != nil { // name_and_type_index
				return nil, nil, err
			}
		default:
			return nil, nil, FormatError{Msg: fmt.Sprintf("unknown constant pool tag %d", tag)}
		}
		entries[i] = c
	}
	return classfile.NewConstantPool(entries), entries, nil
}

// skipMembers discards a fields_count or a members section whose shape
// (access_flags, name_index, descriptor_index, attributes) matches
// field_info; used for the fields table, which the verifier never reads.
func skipMembers(r io.Reader) error {
	count, err := readU16(r)
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := skip(r, 6); err != nil { // access_flags, name_index, descriptor_index
			return err
		}
		if err := skipAttributes(r); err != nil {
			return err
		}
	}
	return nil
}

func skipAttributes(r io.Reader) error {
	count, err := readU16(r)
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if _, err := readU16(r); err != nil { // attribute_name_index
			return err
		}
		length, err := readU32(r)
		if err != nil {
			return err
		}
		if err := skip(r, int(length)); err != nil {
			return err
		}
	}
	return nil
}

func readMethods(r io.Reader, pool *classfile.ConstantPool, rawEntries []classfile.Constant) ([]classfile.Method, error) {
	count, err := readU16(r)
	if err != nil {
		return nil, err
	}
	methods := make([]classfile.Method, count)
	for i := 0; i < int(count); i++ {
		flags, err := readU16(r)
		if err != nil {
			return nil, err
		}
		nameIdx, err := readU16(r)
		if err != nil {
			return nil, err
		}
		descIdx, err := readU16(r)
		if err != nil {
			return nil, err
		}
		name, err := pool.TryGetUTF8(nameIdx)
		if err != nil {
			return nil, err
		}
		descriptor, err := pool.TryGetUTF8(descIdx)
		if err != nil {
			return nil, err
		}

		attrCount, err := readU16(r)
		if err != nil {
			return nil, err
		}
		var code *classfile.Code
		for a := 0; a < int(attrCount); a++ {
			attrNameIdx, err := readU16(r)
			if err != nil {
				return nil, err
			}
			length, err := readU32(r)
			if err != nil {
				return nil, err
			}
			attrName, err := pool.TryGetUTF8(attrNameIdx)
			if err != nil {
				return nil, err
			}
			body, err := readBytes(r, int(length))
			if err != nil {
				return nil, err
			}
			if attrName == codeAttribute {
				code, err = readCode(byteReader(body), pool)
				if err != nil {
					return nil, err
				}
			}
			// every other method attribute (LineNumberTable, LocalVariableTable,
			// Exceptions, RuntimeVisibleAnnotations, ...) is discarded: the
			// verifier has no use for it.
		}

		methods[i] = classfile.Method{
			Name:        name,
			Descriptor:  descriptor,
			AccessFlags: classfile.MethodAccessFlags(flags),
			Code:        code,
		}
	}
	return methods, nil
}

func readCode(r io.Reader, pool *classfile.ConstantPool) (*classfile.Code, error) {
	maxStack, err := readU16(r)
	if err != nil {
		return nil, err
	}
	maxLocals, err := readU16(r)
	if err != nil {
		return nil, err
	}
	codeLength, err := readU32(r)
	if err != nil {
		return nil, err
	}
	raw, err := readBytes(r, int(codeLength))
	if err != nil {
		return nil, err
	}
	instructions, err := decodeInstructions(raw)
	if err != nil {
		return nil, err
	}

	excCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	exceptions := make([]classfile.ExceptionTableEntry, excCount)
	for i := range exceptions {
		start, err := readU16(r)
		if err != nil {
			return nil, err
		}
		end, err := readU16(r)
		if err != nil {
			return nil, err
		}
		handler, err := readU16(r)
		if err != nil {
			return nil, err
		}
		catchIdx, err := readU16(r)
		if err != nil {
			return nil, err
		}
		catchType := ""
		if catchIdx != 0 {
			catchType, err = pool.TryGetClass(catchIdx)
			if err != nil {
				return nil, err
			}
		}
		exceptions[i] = classfile.ExceptionTableEntry{
			Start: start, End: end, Handler: handler, CatchType: catchType,
		}
	}

	attrCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	var stackMap []classfile.RawStackMapFrame
	for a := 0; a < int(attrCount); a++ {
		attrNameIdx, err := readU16(r)
		if err != nil {
			return nil, err
		}
		length, err := readU32(r)
		if err != nil {
			return nil, err
		}
		attrName, err := pool.TryGetUTF8(attrNameIdx)
		if err != nil {
			return nil, err
		}
		body, err := readBytes(r, int(length))
		if err != nil {
			return nil, err
		}
		if attrName == stackMapTableAttribute {
			stackMap, err = readStackMapTable(byteReader(body))
			if err != nil {
				return nil, err
			}
		}
	}

	return &classfile.Code{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Instructions:   instructions,
		ExceptionTable: exceptions,
		StackMapTable:  stackMap,
	}, nil
}

func readStackMapTable(r io.Reader) ([]classfile.RawStackMapFrame, error) {
	count, err := readU16(r)
	if err != nil {
		return nil, err
	}
	frames := make([]classfile.RawStackMapFrame, count)
	for i := range frames {
		frameType, err := readU8(r)
		if err != nil {
			return nil, err
		}
		f := classfile.RawStackMapFrame{FrameType: frameType}
		switch {
		case frameType <= 63: // same_frame
			f.OffsetDelta = uint16(frameType)
		case frameType <= 127: // same_locals_1_stack_item_frame
			f.OffsetDelta = uint16(frameType - 64)
			vt, err := readVerificationType(r)
			if err != nil {
				return nil, err
			}
			f.Stack = []classfile.VerificationTypeInfo{vt}
		case frameType >= 128 && frameType <= 246:
			return nil, FormatError{Msg: fmt.Sprintf("reserved stackmap frame type %d", frameType)}
		case frameType == 247: // same_locals_1_stack_item_frame_extended
			delta, err := readU16(r)
			if err != nil {
				return nil, err
			}
			vt, err := readVerificationType(r)
			if err != nil {
				return nil, err
			}
			f.OffsetDelta = delta
			f.Stack = []classfile.VerificationTypeInfo{vt}
		case frameType >= 248 && frameType <= 250: // chop_frame
			delta, err := readU16(r)
			if err != nil {
				return nil, err
			}
			f.OffsetDelta = delta
			f.ChopCount = 251 - int(frameType)
		case frameType == 251: // same_frame_extended
			delta, err := readU16(r)
			if err != nil {
				return nil, err
			}
			f.OffsetDelta = delta
		case frameType >= 252 && frameType <= 254: // append_frame
			delta, err := readU16(r)
			if err != nil {
				return nil, err
			}
			f.OffsetDelta = delta
			n := int(frameType) - 251
			locals := make([]classfile.VerificationTypeInfo, n)
			for j := range locals {
				locals[j], err = readVerificationType(r)
				if err != nil {
					return nil, err
				}
			}
			f.Locals = locals
		case frameType == 255: // full_frame
			delta, err := readU16(r)
			if err != nil {
				return nil, err
			}
			f.OffsetDelta = delta
			localsCount, err := readU16(r)
			if err != nil {
				return nil, err
			}
			locals := make([]classfile.VerificationTypeInfo, localsCount)
			for j := range locals {
				locals[j], err = readVerificationType(r)
				if err != nil {
					return nil, err
				}
			}
			stackCount, err := readU16(r)
			if err != nil {
				return nil, err
			}
			stack := make([]classfile.VerificationTypeInfo, stackCount)
			for j := range stack {
				stack[j], err = readVerificationType(r)
				if err != nil {
					return nil, err
				}
			}
			f.Locals = locals
			f.Stack = stack
		}
		frames[i] = f
	}
	return frames, nil
}

func readVerificationType(r io.Reader) (classfile.VerificationTypeInfo, error) {
	tag, err := readU8(r)
	if err != nil {
		return classfile.VerificationTypeInfo{}, err
	}
	info := classfile.VerificationTypeInfo{Tag: tag}
	switch tag {
	case classfile.VTObject:
		idx, err := readU16(r)
		if err != nil {
			return info, err
		}
		info.CPoolIndex = idx
	case classfile.VTUninitialized:
		off, err := readU16(r)
		if err != nil {
			return info, err
		}
		info.Offset = off
	}
	return info, nil
}

// decodeInstructions walks a method's raw bytecode into the verifier's
// Instruction slice, one entry per instruction boundary.
func decodeInstructions(code []byte) ([]classfile.Instruction, error) {
	var out []classfile.Instruction
	r := bytes.NewReader(code)
	for r.Len() > 0 {
		pc := len(code) - r.Len()
		opByte, err := readU8(r)
		if err != nil {
			return nil, err
		}
		op := classfile.Opcode(opByte)
		in := classfile.Instruction{Op: op}

		switch op {
		case classfile.OpBIPush:
			v, err := readU8(r)
			if err != nil {
				return nil, err
			}
			in.IntOperand = int32(int8(v))
		case classfile.OpSIPush:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			in.IntOperand = int32(int16(v))
		case classfile.OpLdc:
			v, err := readU8(r)
			if err != nil {
				return nil, err
			}
			in.Index = uint16(v)
		case classfile.OpLdcW, classfile.OpLdc2W:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			in.Index = v
		case classfile.OpILoad, classfile.OpLLoad, classfile.OpFLoad, classfile.OpDLoad, classfile.OpALoad,
			classfile.OpIStore, classfile.OpLStore, classfile.OpFStore, classfile.OpDStore, classfile.OpAStore,
			classfile.OpRet:
			v, err := readU8(r)
			if err != nil {
				return nil, err
			}
			in.Index = uint16(v)
		case classfile.OpIInc:
			idx, err := readU8(r)
			if err != nil {
				return nil, err
			}
			delta, err := readU8(r)
			if err != nil {
				return nil, err
			}
			in.Index = uint16(idx)
			in.IntOperand = int32(int8(delta))
		case classfile.OpNewArray:
			v, err := readU8(r)
			if err != nil {
				return nil, err
			}
			in.ArrayType = classfile.NewArrayType(v)
		case classfile.OpGetStatic, classfile.OpPutStatic, classfile.OpGetField, classfile.OpPutField,
			classfile.OpInvokeVirtual, classfile.OpInvokeSpecial, classfile.OpInvokeStatic,
			classfile.OpNew, classfile.OpANewArray, classfile.OpCheckCast, classfile.OpInstanceOf:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			in.Index = v
		case classfile.OpInvokeInterface:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			if _, err := readU8(r); err != nil { // count
				return nil, err
			}
			if _, err := readU8(r); err != nil { // reserved, must be 0
				return nil, err
			}
			in.Index = v
		case classfile.OpInvokeDynamic:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			if _, err := readU16(r); err != nil { // reserved, must be 0
				return nil, err
			}
			in.Index = v
		case classfile.OpMultianewarray:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			dims, err := readU8(r)
			if err != nil {
				return nil, err
			}
			in.Index = v
			in.Dimensions = dims
		case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe, classfile.OpIfGt, classfile.OpIfLe,
			classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt, classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe,
			classfile.OpIfACmpEq, classfile.OpIfACmpNe, classfile.OpGoto, classfile.OpJsr,
			classfile.OpIfNull, classfile.OpIfNonNull:
			v, err := readU16(r)
			if err != nil {
				return nil, err
			}
			in.BranchOffset = int32(int16(v))
		case classfile.OpGotoW, classfile.OpJsrW:
			v, err := readU32(r)
			if err != nil {
				return nil, err
			}
			in.BranchOffset = int32(v)
		case classfile.OpTableSwitch:
			if err := skipPadding(r, pc); err != nil {
				return nil, err
			}
			def, err := readU32(r)
			if err != nil {
				return nil, err
			}
			low, err := readU32(r)
			if err != nil {
				return nil, err
			}
			high, err := readU32(r)
			if err != nil {
				return nil, err
			}
			n := int32(high) - int32(low) + 1
			offsets := make([]int32, n)
			for i := range offsets {
				v, err := readU32(r)
				if err != nil {
					return nil, err
				}
				offsets[i] = int32(v)
			}
			in.Default = int32(def)
			in.Low = int32(low)
			in.High = int32(high)
			in.Offsets = offsets
		case classfile.OpLookupSwitch:
			if err := skipPadding(r, pc); err != nil {
				return nil, err
			}
			def, err := readU32(r)
			if err != nil {
				return nil, err
			}
			n, err := readU32(r)
			if err != nil {
				return nil, err
			}
			cases := make([]classfile.SwitchCase, n)
			for i := range cases {
				match, err := readU32(r)
				if err != nil {
					return nil, err
				}
				off, err := readU32(r)
				if err != nil {
					return nil, err
				}
				cases[i] = classfile.SwitchCase{Match: int32(match), Offset: int32(off)}
			}
			in.Default = int32(def)
			in.Cases = cases
		}

		out = append(out, in)
	}
	return out, nil
}

func skipPadding(r *bytes.Reader, pc int) error {
	pad := (4 - (pc+1)%4) % 4
	return skip(r, pad)
}
