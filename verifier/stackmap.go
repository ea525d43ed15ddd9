// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "github.com/ristretto-jvm/ristretto/classfile"

// Anchor is a single decoded StackMapTable entry: a trusted frame at a
// bytecode offset, per §4.4.
type Anchor struct {
	Offset int
	Frame  *Frame
}

// DecodedStackMapTable is the sorted, offset-increasing sequence of
// anchors produced by StackMapDecoder.
type DecodedStackMapTable struct {
	Anchors []Anchor
}

// AtOffset returns the anchor at offset, if any.
func (d DecodedStackMapTable) AtOffset(offset int) (*Frame, bool) {
	for _, a := range d.Anchors {
		if a.Offset == offset {
			return a.Frame, true
		}
	}
	return nil, false
}

// decodeVerificationType translates a single on-disk verification type
// into the canonical VerificationType, resolving Object's class-pool
// reference through cp.
func decodeVerificationType(info classfile.VerificationTypeInfo, cp classfile.ConstantPoolResolver) (VerificationType, error) {
	switch info.Tag {
	case classfile.VTTop:
		return Top, nil
	case classfile.VTInteger:
		return Integer, nil
	case classfile.VTFloat:
		return Float, nil
	case classfile.VTDouble:
		return Double, nil
	case classfile.VTLong:
		return Long, nil
	case classfile.VTNull:
		return Null, nil
	case classfile.VTUninitializedThis:
		return UninitializedThis, nil
	case classfile.VTObject:
		name, err := cp.TryGetClass(info.CPoolIndex)
		if err != nil {
			return VerificationType{}, err
		}
		return Object(name), nil
	case classfile.VTUninitialized:
		return Uninitialized(int(info.Offset)), nil
	default:
		return VerificationType{}, VerifyError{Msg: "invalid verification type tag"}
	}
}

// appendToLocals lays verification types into a locals slice starting at
// localIndex, accounting for category-2 width, and returns the next free
// index.
func appendToLocals(locals []VerificationType, localIndex int, types []VerificationType) (int, error) {
	for _, t := range types {
		if t.IsCategory2() {
			if localIndex+1 >= len(locals) {
				return 0, VerifyError{Msg: "stackmap frame locals exceed max_locals"}
			}
			locals[localIndex] = t
			locals[localIndex+1] = Top
			localIndex += 2
		} else {
			if localIndex >= len(locals) {
				return 0, VerifyError{Msg: "stackmap frame locals exceed max_locals"}
			}
			locals[localIndex] = t
			localIndex++
		}
	}
	return localIndex, nil
}

func buildStack(types []VerificationType, maxStack int) ([]VerificationType, error) {
	stack := make([]VerificationType, 0, maxStack)
	for _, t := range types {
		if t.IsCategory2() {
			if len(stack)+2 > maxStack {
				return nil, StackOverflow{MaxStack: maxStack}
			}
			stack = append(stack, t, Top)
		} else {
			if len(stack)+1 > maxStack {
				return nil, StackOverflow{MaxStack: maxStack}
			}
			stack = append(stack, t)
		}
	}
	return stack, nil
}

// DecodeStackMapTable translates the raw on-disk frames into canonical
// frames at offsets, per §4.4. initial is the frame synthesized from the
// method descriptor (frame 0, implicit in the encoding).
func DecodeStackMapTable(raw []classfile.RawStackMapFrame, initial *Frame, maxLocals, maxStack int, cp classfile.ConstantPoolResolver, info CodeInfo) (DecodedStackMapTable, error) {
	var out DecodedStackMapTable
	previousOffset := -1
	locals := append([]VerificationType(nil), initial.Locals...)
	// localsLen tracks the "active" prefix of locals per JVMS append/chop
	// semantics; unused trailing Top slots beyond it do not participate.
	localsLen := initial.ActiveLocals

	for _, frame := range raw {
		var offset int
		if previousOffset < 0 {
			offset = int(frame.OffsetDelta)
		} else {
			offset = previousOffset + int(frame.OffsetDelta) + 1
		}
		previousOffset = offset

		if _, ok := info.IndexAt(offset); !ok {
			return DecodedStackMapTable{}, VerifyError{Msg: "stackmap frame offset is not an instruction boundary"}
		}

		switch {
		case frame.FrameType <= 63: // same_frame
			// locals unchanged; stack empty.
		case frame.FrameType <= 127: // same_locals_1_stack_item_frame
			if len(frame.Stack) != 1 {
				return DecodedStackMapTable{}, VerifyError{Msg: "same_locals_1_stack_item frame must carry exactly one stack item"}
			}
		case frame.FrameType == 247: // same_locals_1_stack_item_frame_extended
			if len(frame.Stack) != 1 {
				return DecodedStackMapTable{}, VerifyError{Msg: "same_locals_1_stack_item frame must carry exactly one stack item"}
			}
			// locals unchanged.
		case frame.FrameType >= 248 && frame.FrameType <= 250: // chop_frame
			chop := 251 - int(frame.FrameType)
			for c := 0; c < chop; c++ {
				if localsLen == 0 {
					return DecodedStackMapTable{}, VerifyError{Msg: "chop frame removes more locals than present"}
				}
				localsLen--
				locals[localsLen] = Top
			}
		case frame.FrameType == 251: // same_frame_extended
			// locals unchanged; stack empty.
		case frame.FrameType >= 252 && frame.FrameType <= 254: // append_frame
			appended := make([]VerificationType, len(frame.Locals))
			for i, vt := range frame.Locals {
				t, err := decodeVerificationType(vt, cp)
				if err != nil {
					return DecodedStackMapTable{}, err
				}
				appended[i] = t
			}
			next, err := appendToLocals(locals, localsLen, appended)
			if err != nil {
				return DecodedStackMapTable{}, err
			}
			localsLen = next
		case frame.FrameType == 255: // full_frame
			newLocals := make([]VerificationType, maxLocals)
			for i := range newLocals {
				newLocals[i] = Top
			}
			decoded, err := decodeAll(frame.Locals, cp)
			if err != nil {
				return DecodedStackMapTable{}, err
			}
			next, err := appendToLocals(newLocals, 0, decoded)
			if err != nil {
				return DecodedStackMapTable{}, err
			}
			locals = newLocals
			localsLen = next
		default:
			return DecodedStackMapTable{}, VerifyError{Msg: "reserved stackmap frame type"}
		}

		var stackTypes []VerificationType
		if (frame.FrameType >= 64 && frame.FrameType <= 127) || frame.FrameType == 247 {
			t, err := decodeVerificationType(frame.Stack[0], cp)
			if err != nil {
				return DecodedStackMapTable{}, err
			}
			stackTypes = []VerificationType{t}
		} else if frame.FrameType == 255 {
			for _, vt := range frame.Stack {
				t, err := decodeVerificationType(vt, cp)
				if err != nil {
					return DecodedStackMapTable{}, err
				}
				stackTypes = append(stackTypes, t)
			}
		}

		framedLocals := make([]VerificationType, maxLocals)
		copy(framedLocals, locals)
		stack, err := buildStack(stackTypes, maxStack)
		if err != nil {
			return DecodedStackMapTable{}, err
		}
		out.Anchors = append(out.Anchors, Anchor{
			Offset: offset,
			Frame: &Frame{
				Locals:    framedLocals,
				Stack:     stack,
				maxLocals: maxLocals,
				maxStack:  maxStack,
			},
		})
	}
	return out, nil
}

func decodeAll(infos []classfile.VerificationTypeInfo, cp classfile.ConstantPoolResolver) ([]VerificationType, error) {
	out := make([]VerificationType, 0, len(infos))
	for _, vt := range infos {
		t, err := decodeVerificationType(vt, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
