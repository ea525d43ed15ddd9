// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "github.com/ristretto-jvm/ristretto/classfile"

// Effects applies the dataflow effect of a single instruction to frame,
// per §4.5. pc is the instruction's byte offset (needed by `new`, which
// tags the Uninitialized type it produces with its own offset).
// returnType is the method's return type (nil for void), needed by the
// return family's type check.
type Effects struct {
	CP         classfile.ConstantPoolResolver
	Ctx        Context
	ReturnType *classfile.FieldType
}

// Apply dispatches in to the handler for its opcode group and mutates
// frame in place. Every classfile.Opcode value classfile can represent is
// handled; reaching the default case is an InternalError, not a property
// of the input (per §7).
func (e Effects) Apply(frame *Frame, pc int, in classfile.Instruction) error {
	switch {
	case isConstOp(in.Op):
		return e.applyConst(frame, in)
	case isLoadStoreOp(in.Op):
		return e.applyLoadStore(frame, in)
	case isArrayAccessOp(in.Op):
		return e.applyArrayAccess(frame, in)
	case isStackOp(in.Op):
		return e.applyStack(frame, in)
	case isMathOp(in.Op):
		return e.applyMath(frame, in)
	case isConversionOp(in.Op):
		return e.applyConversion(frame, in)
	case isComparisonOp(in.Op):
		return e.applyComparison(frame, in)
	case isControlFlowOp(in.Op):
		return e.applyControlFlow(frame, in)
	case isReferenceOp(in.Op):
		return e.applyReference(frame, pc, in)
	case in.Op == classfile.OpNop:
		return nil
	default:
		return InternalError{Msg: "unhandled opcode " + in.Op.String()}
	}
}

// --- loads/stores & constants -------------------------------------------------

func isConstOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpAConstNull,
		classfile.OpIConstM1, classfile.OpIConst0, classfile.OpIConst1, classfile.OpIConst2,
		classfile.OpIConst3, classfile.OpIConst4, classfile.OpIConst5,
		classfile.OpLConst0, classfile.OpLConst1,
		classfile.OpFConst0, classfile.OpFConst1, classfile.OpFConst2,
		classfile.OpDConst0, classfile.OpDConst1,
		classfile.OpBIPush, classfile.OpSIPush,
		classfile.OpLdc, classfile.OpLdcW, classfile.OpLdc2W:
		return true
	}
	return false
}

func (e Effects) applyConst(frame *Frame, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpAConstNull:
		return frame.Push(Null)
	case classfile.OpIConstM1, classfile.OpIConst0, classfile.OpIConst1, classfile.OpIConst2,
		classfile.OpIConst3, classfile.OpIConst4, classfile.OpIConst5, classfile.OpBIPush, classfile.OpSIPush:
		return frame.Push(Integer)
	case classfile.OpLConst0, classfile.OpLConst1:
		return frame.PushCategory2(Long)
	case classfile.OpFConst0, classfile.OpFConst1, classfile.OpFConst2:
		return frame.Push(Float)
	case classfile.OpDConst0, classfile.OpDConst1:
		return frame.PushCategory2(Double)
	case classfile.OpLdc, classfile.OpLdcW:
		tag, err := e.CP.TryGetLoadableType(in.Index)
		if err != nil {
			return err
		}
		switch tag {
		case classfile.TagInteger:
			return frame.Push(Integer)
		case classfile.TagFloat:
			return frame.Push(Float)
		case classfile.TagString, classfile.TagMethodType:
			return frame.Push(Object("java/lang/String"))
		case classfile.TagClass:
			return frame.Push(Object("java/lang/Class"))
		case classfile.TagMethodHandle:
			return frame.Push(Object("java/lang/invoke/MethodHandle"))
		default:
			return VerifyError{Msg: "ldc of non-single-width constant"}
		}
	case classfile.OpLdc2W:
		tag, err := e.CP.TryGetLoadableType(in.Index)
		if err != nil {
			return err
		}
		switch tag {
		case classfile.TagLong:
			return frame.PushCategory2(Long)
		case classfile.TagDouble:
			return frame.PushCategory2(Double)
		default:
			return VerifyError{Msg: "ldc2_w of non-category-2 constant"}
		}
	}
	return InternalError{Msg: "unreachable const opcode"}
}

func isLoadStoreOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpILoad, classfile.OpLLoad, classfile.OpFLoad, classfile.OpDLoad, classfile.OpALoad,
		classfile.OpIStore, classfile.OpLStore, classfile.OpFStore, classfile.OpDStore, classfile.OpAStore:
		return true
	}
	return false
}

func (e Effects) applyLoadStore(frame *Frame, in classfile.Instruction) error {
	i := int(in.Index)
	switch in.Op {
	case classfile.OpILoad:
		return loadChecked(frame, i, Integer)
	case classfile.OpFLoad:
		return loadChecked(frame, i, Float)
	case classfile.OpALoad:
		return loadReference(frame, i)
	case classfile.OpLLoad:
		t, err := frame.GetLocalCategory2(i)
		if err != nil {
			return err
		}
		if t.Kind != KindLong {
			return VerifyError{Msg: "lload of non-long local"}
		}
		return frame.PushCategory2(t)
	case classfile.OpDLoad:
		t, err := frame.GetLocalCategory2(i)
		if err != nil {
			return err
		}
		if t.Kind != KindDouble {
			return VerifyError{Msg: "dload of non-double local"}
		}
		return frame.PushCategory2(t)
	case classfile.OpIStore:
		return storeChecked(frame, i, Integer)
	case classfile.OpFStore:
		return storeChecked(frame, i, Float)
	case classfile.OpAStore:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return VerifyError{Msg: "astore of non-reference value"}
		}
		return frame.SetLocal(i, v)
	case classfile.OpLStore:
		v, err := frame.PopCategory2()
		if err != nil {
			return err
		}
		if v.Kind != KindLong {
			return VerifyError{Msg: "lstore of non-long value"}
		}
		return frame.SetLocalCategory2(i, v)
	case classfile.OpDStore:
		v, err := frame.PopCategory2()
		if err != nil {
			return err
		}
		if v.Kind != KindDouble {
			return VerifyError{Msg: "dstore of non-double value"}
		}
		return frame.SetLocalCategory2(i, v)
	}
	return InternalError{Msg: "unreachable load/store opcode"}
}

func loadChecked(frame *Frame, i int, want VerificationType) error {
	t, err := frame.GetLocal(i)
	if err != nil {
		return err
	}
	if t.Kind != want.Kind {
		return VerifyError{Msg: "local type mismatch at index"}
	}
	return frame.Push(t)
}

func loadReference(frame *Frame, i int) error {
	t, err := frame.GetLocal(i)
	if err != nil {
		return err
	}
	if !t.IsReference() {
		return VerifyError{Msg: "aload of non-reference local"}
	}
	return frame.Push(t)
}

func storeChecked(frame *Frame, i int, want VerificationType) error {
	v, err := frame.Pop()
	if err != nil {
		return err
	}
	if v.Kind != want.Kind {
		return VerifyError{Msg: "store type mismatch"}
	}
	return frame.SetLocal(i, v)
}

// --- array access --------------------------------------------------------

func isArrayAccessOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpIALoad, classfile.OpLALoad, classfile.OpFALoad, classfile.OpDALoad,
		classfile.OpAALoad, classfile.OpBALoad, classfile.OpCALoad, classfile.OpSALoad,
		classfile.OpIAStore, classfile.OpLAStore, classfile.OpFAStore, classfile.OpDAStore,
		classfile.OpAAStore, classfile.OpBAStore, classfile.OpCAStore, classfile.OpSAStore:
		return true
	}
	return false
}

func popArrayRef(frame *Frame) (VerificationType, bool, error) {
	ref, err := frame.Pop()
	if err != nil {
		return VerificationType{}, false, err
	}
	if ref.Kind == KindNull {
		return ref, true, nil
	}
	if !isArrayType(ref) {
		return VerificationType{}, false, VerifyError{Msg: "array operation on non-array type " + ref.String()}
	}
	return ref, false, nil
}

func (e Effects) applyArrayAccess(frame *Frame, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpIALoad, classfile.OpFALoad, classfile.OpAALoad, classfile.OpBALoad, classfile.OpCALoad, classfile.OpSALoad:
		if _, err := frame.Pop(); err != nil { // index
			return err
		}
		ref, isNull, err := popArrayRef(frame)
		if err != nil {
			return err
		}
		if isNull {
			return frame.Push(Null) // §4.5: aaload on a Null array produces Null
		}
		elem, err := arrayElementType(ref)
		if err != nil {
			return err
		}
		return frame.Push(FieldTypeToVerificationType(elem))
	case classfile.OpLALoad, classfile.OpDALoad:
		if _, err := frame.Pop(); err != nil {
			return err
		}
		ref, isNull, err := popArrayRef(frame)
		if err != nil {
			return err
		}
		if isNull {
			return frame.PushCategory2(Top)
		}
		elem, err := arrayElementType(ref)
		if err != nil {
			return err
		}
		return frame.PushCategory2(FieldTypeToVerificationType(elem))
	case classfile.OpIAStore, classfile.OpFAStore, classfile.OpAAStore, classfile.OpBAStore, classfile.OpCAStore, classfile.OpSAStore:
		if _, err := frame.Pop(); err != nil { // value
			return err
		}
		if _, err := frame.Pop(); err != nil { // index
			return err
		}
		_, _, err := popArrayRef(frame)
		return err
	case classfile.OpLAStore, classfile.OpDAStore:
		if _, err := frame.PopCategory2(); err != nil {
			return err
		}
		if _, err := frame.Pop(); err != nil {
			return err
		}
		_, _, err := popArrayRef(frame)
		return err
	}
	return InternalError{Msg: "unreachable array opcode"}
}

// --- stack manipulation ----------------------------------------------------

func isStackOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpPop, classfile.OpPop2, classfile.OpDup, classfile.OpDupX1, classfile.OpDupX2,
		classfile.OpDup2, classfile.OpDup2X1, classfile.OpDup2X2, classfile.OpSwap:
		return true
	}
	return false
}

func (e Effects) applyStack(frame *Frame, in classfile.Instruction) error {
	pop := func() (VerificationType, error) { return frame.Pop() }
	switch in.Op {
	case classfile.OpPop:
		_, err := pop()
		return err
	case classfile.OpPop2:
		if _, err := pop(); err != nil {
			return err
		}
		_, err := pop()
		return err
	case classfile.OpDup:
		v, err := pop()
		if err != nil {
			return err
		}
		if err := frame.Push(v); err != nil {
			return err
		}
		return frame.Push(v)
	case classfile.OpDupX1:
		v1, err := pop()
		if err != nil {
			return err
		}
		v2, err := pop()
		if err != nil {
			return err
		}
		for _, v := range []VerificationType{v1, v2, v1} {
			if err := frame.Push(v); err != nil {
				return err
			}
		}
		return nil
	case classfile.OpDupX2:
		v1, err := pop()
		if err != nil {
			return err
		}
		v2, err := pop()
		if err != nil {
			return err
		}
		v3, err := pop()
		if err != nil {
			return err
		}
		for _, v := range []VerificationType{v1, v3, v2, v1} {
			if err := frame.Push(v); err != nil {
				return err
			}
		}
		return nil
	case classfile.OpDup2:
		v1, err := pop()
		if err != nil {
			return err
		}
		v2, err := pop()
		if err != nil {
			return err
		}
		for _, v := range []VerificationType{v2, v1, v2, v1} {
			if err := frame.Push(v); err != nil {
				return err
			}
		}
		return nil
	case classfile.OpDup2X1:
		v1, err := pop()
		if err != nil {
			return err
		}
		v2, err := pop()
		if err != nil {
			return err
		}
		v3, err := pop()
		if err != nil {
			return err
		}
		for _, v := range []VerificationType{v2, v1, v3, v2, v1} {
			if err := frame.Push(v); err != nil {
				return err
			}
		}
		return nil
	case classfile.OpDup2X2:
		v1, err := pop()
		if err != nil {
			return err
		}
		v2, err := pop()
		if err != nil {
			return err
		}
		v3, err := pop()
		if err != nil {
			return err
		}
		v4, err := pop()
		if err != nil {
			return err
		}
		for _, v := range []VerificationType{v2, v1, v4, v3, v2, v1} {
			if err := frame.Push(v); err != nil {
				return err
			}
		}
		return nil
	case classfile.OpSwap:
		v1, err := pop()
		if err != nil {
			return err
		}
		v2, err := pop()
		if err != nil {
			return err
		}
		if err := frame.Push(v1); err != nil {
			return err
		}
		return frame.Push(v2)
	}
	return InternalError{Msg: "unreachable stack opcode"}
}

// --- math --------------------------------------------------------------

func isMathOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpIAdd, classfile.OpLAdd, classfile.OpFAdd, classfile.OpDAdd,
		classfile.OpISub, classfile.OpLSub, classfile.OpFSub, classfile.OpDSub,
		classfile.OpIMul, classfile.OpLMul, classfile.OpFMul, classfile.OpDMul,
		classfile.OpIDiv, classfile.OpLDiv, classfile.OpFDiv, classfile.OpDDiv,
		classfile.OpIRem, classfile.OpLRem, classfile.OpFRem, classfile.OpDRem,
		classfile.OpINeg, classfile.OpLNeg, classfile.OpFNeg, classfile.OpDNeg,
		classfile.OpIShl, classfile.OpLShl, classfile.OpIShr, classfile.OpLShr,
		classfile.OpIUShr, classfile.OpLUShr,
		classfile.OpIAnd, classfile.OpLAnd, classfile.OpIOr, classfile.OpLOr, classfile.OpIXor, classfile.OpLXor,
		classfile.OpIInc:
		return true
	}
	return false
}

func binaryCat1(frame *Frame, t VerificationType) error {
	if _, err := frame.Pop(); err != nil {
		return err
	}
	if _, err := frame.Pop(); err != nil {
		return err
	}
	return frame.Push(t)
}

func binaryCat2(frame *Frame, t VerificationType) error {
	if _, err := frame.PopCategory2(); err != nil {
		return err
	}
	if _, err := frame.PopCategory2(); err != nil {
		return err
	}
	return frame.PushCategory2(t)
}

// shiftCat2 handles lshl/lshr/lushr: shift amount is an int (category 1),
// the shifted value and result are category 2.
func shiftCat2(frame *Frame, t VerificationType) error {
	if _, err := frame.Pop(); err != nil {
		return err
	}
	if _, err := frame.PopCategory2(); err != nil {
		return err
	}
	return frame.PushCategory2(t)
}

func unaryCat1(frame *Frame, t VerificationType) error {
	if _, err := frame.Pop(); err != nil {
		return err
	}
	return frame.Push(t)
}

func unaryCat2(frame *Frame, t VerificationType) error {
	if _, err := frame.PopCategory2(); err != nil {
		return err
	}
	return frame.PushCategory2(t)
}

func (e Effects) applyMath(frame *Frame, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpIAdd, classfile.OpISub, classfile.OpIMul, classfile.OpIDiv, classfile.OpIRem,
		classfile.OpIAnd, classfile.OpIOr, classfile.OpIXor:
		return binaryCat1(frame, Integer)
	case classfile.OpFAdd, classfile.OpFSub, classfile.OpFMul, classfile.OpFDiv, classfile.OpFRem:
		return binaryCat1(frame, Float)
	case classfile.OpLAdd, classfile.OpLSub, classfile.OpLMul, classfile.OpLDiv, classfile.OpLRem,
		classfile.OpLAnd, classfile.OpLOr, classfile.OpLXor:
		return binaryCat2(frame, Long)
	case classfile.OpDAdd, classfile.OpDSub, classfile.OpDMul, classfile.OpDDiv, classfile.OpDRem:
		return binaryCat2(frame, Double)
	case classfile.OpINeg:
		return unaryCat1(frame, Integer)
	case classfile.OpFNeg:
		return unaryCat1(frame, Float)
	case classfile.OpLNeg:
		return unaryCat2(frame, Long)
	case classfile.OpDNeg:
		return unaryCat2(frame, Double)
	case classfile.OpIShl, classfile.OpIShr, classfile.OpIUShr:
		return binaryCat1(frame, Integer)
	case classfile.OpLShl, classfile.OpLShr, classfile.OpLUShr:
		return shiftCat2(frame, Long)
	case classfile.OpIInc:
		t, err := frame.GetLocal(int(in.Index))
		if err != nil {
			return err
		}
		if t.Kind != KindInteger {
			return VerifyError{Msg: "iinc on non-int local"}
		}
		return nil
	}
	return InternalError{Msg: "unreachable math opcode"}
}

// --- conversion ----------------------------------------------------------

func isConversionOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpI2L, classfile.OpI2F, classfile.OpI2D, classfile.OpL2I, classfile.OpL2F, classfile.OpL2D,
		classfile.OpF2I, classfile.OpF2L, classfile.OpF2D, classfile.OpD2I, classfile.OpD2L, classfile.OpD2F,
		classfile.OpI2B, classfile.OpI2C, classfile.OpI2S:
		return true
	}
	return false
}

func (e Effects) applyConversion(frame *Frame, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpI2L:
		return convert1to2(frame, Integer, Long)
	case classfile.OpI2F:
		v, err := frame.Pop() // pops int (checked), pushes float
		if err != nil {
			return err
		}
		if v.Kind != KindInteger {
			return VerifyError{Msg: "conversion source type mismatch"}
		}
		return frame.Push(Float)
	case classfile.OpI2D:
		return convert1to2(frame, Integer, Double)
	case classfile.OpI2B, classfile.OpI2C, classfile.OpI2S:
		return unaryCat1(frame, Integer)
	case classfile.OpL2I:
		return convert2to1(frame, Long, Integer)
	case classfile.OpL2F:
		return convert2to1(frame, Long, Float)
	case classfile.OpL2D:
		return unaryCat2(frame, Double)
	case classfile.OpF2I:
		return unaryCat1(frame, Integer)
	case classfile.OpF2L:
		return convert1to2(frame, Float, Long)
	case classfile.OpF2D:
		return convert1to2(frame, Float, Double)
	case classfile.OpD2I:
		return convert2to1(frame, Double, Integer)
	case classfile.OpD2L:
		return unaryCat2(frame, Long)
	case classfile.OpD2F:
		return convert2to1(frame, Double, Float)
	}
	return InternalError{Msg: "unreachable conversion opcode"}
}

func convert1to2(frame *Frame, from, to VerificationType) error {
	v, err := frame.Pop()
	if err != nil {
		return err
	}
	if v.Kind != from.Kind {
		return VerifyError{Msg: "conversion source type mismatch"}
	}
	return frame.PushCategory2(to)
}

func convert2to1(frame *Frame, from, to VerificationType) error {
	v, err := frame.PopCategory2()
	if err != nil {
		return err
	}
	if v.Kind != from.Kind {
		return VerifyError{Msg: "conversion source type mismatch"}
	}
	return frame.Push(to)
}

// --- comparison ----------------------------------------------------------

func isComparisonOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpLCmp, classfile.OpFCmpL, classfile.OpFCmpG, classfile.OpDCmpL, classfile.OpDCmpG:
		return true
	}
	return false
}

func (e Effects) applyComparison(frame *Frame, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpLCmp:
		if _, err := frame.PopCategory2(); err != nil {
			return err
		}
		if _, err := frame.PopCategory2(); err != nil {
			return err
		}
		return frame.Push(Integer)
	case classfile.OpFCmpL, classfile.OpFCmpG:
		if _, err := frame.Pop(); err != nil {
			return err
		}
		if _, err := frame.Pop(); err != nil {
			return err
		}
		return frame.Push(Integer)
	case classfile.OpDCmpL, classfile.OpDCmpG:
		if _, err := frame.PopCategory2(); err != nil {
			return err
		}
		if _, err := frame.PopCategory2(); err != nil {
			return err
		}
		return frame.Push(Integer)
	}
	return InternalError{Msg: "unreachable comparison opcode"}
}

// --- control flow ----------------------------------------------------------

func isControlFlowOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe, classfile.OpIfGt, classfile.OpIfLe,
		classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt, classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe,
		classfile.OpIfACmpEq, classfile.OpIfACmpNe, classfile.OpIfNull, classfile.OpIfNonNull,
		classfile.OpGoto, classfile.OpGotoW, classfile.OpJsr, classfile.OpJsrW, classfile.OpRet,
		classfile.OpTableSwitch, classfile.OpLookupSwitch,
		classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn, classfile.OpDReturn, classfile.OpAReturn, classfile.OpReturn:
		return true
	}
	return false
}

func (e Effects) applyControlFlow(frame *Frame, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe, classfile.OpIfGt, classfile.OpIfLe:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if v.Kind != KindInteger {
			return VerifyError{Msg: "if<cond> on non-int value"}
		}
		return nil
	case classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt, classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe:
		for i := 0; i < 2; i++ {
			v, err := frame.Pop()
			if err != nil {
				return err
			}
			if v.Kind != KindInteger {
				return VerifyError{Msg: "if_icmp<cond> on non-int value"}
			}
		}
		return nil
	case classfile.OpIfACmpEq, classfile.OpIfACmpNe:
		for i := 0; i < 2; i++ {
			v, err := frame.Pop()
			if err != nil {
				return err
			}
			if !v.IsReference() {
				return VerifyError{Msg: "if_acmp<cond> on non-reference value"}
			}
		}
		return nil
	case classfile.OpIfNull, classfile.OpIfNonNull:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return VerifyError{Msg: "ifnull/ifnonnull on non-reference value"}
		}
		return nil
	case classfile.OpGoto, classfile.OpGotoW:
		return nil
	case classfile.OpJsr, classfile.OpJsrW:
		return frame.Push(Object("__returnAddress"))
	case classfile.OpRet:
		t, err := frame.GetLocal(int(in.Index))
		if err != nil {
			return err
		}
		if t.Kind != KindObject || t.ClassName != "__returnAddress" {
			return VerifyError{Msg: "ret of non-returnAddress local"}
		}
		return nil
	case classfile.OpTableSwitch, classfile.OpLookupSwitch:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if v.Kind != KindInteger {
			return VerifyError{Msg: "switch index is not an int"}
		}
		return nil
	case classfile.OpReturn:
		if e.ReturnType != nil {
			return VerifyError{Msg: "return from a method with a non-void return type"}
		}
		return nil
	case classfile.OpIReturn, classfile.OpFReturn, classfile.OpLReturn, classfile.OpDReturn, classfile.OpAReturn:
		return e.checkReturn(frame, in.Op)
	}
	return InternalError{Msg: "unreachable control-flow opcode"}
}

func (e Effects) checkReturn(frame *Frame, op classfile.Opcode) error {
	if e.ReturnType == nil {
		return VerifyError{Msg: "non-void return opcode in a void method"}
	}
	want := FieldTypeToVerificationType(*e.ReturnType)
	switch op {
	case classfile.OpIReturn:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if v.Kind != KindInteger || want.Kind != KindInteger {
			return VerifyError{Msg: "ireturn type mismatch"}
		}
		return nil
	case classfile.OpFReturn:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if v.Kind != KindFloat || want.Kind != KindFloat {
			return VerifyError{Msg: "freturn type mismatch"}
		}
		return nil
	case classfile.OpLReturn:
		v, err := frame.PopCategory2()
		if err != nil {
			return err
		}
		if v.Kind != KindLong || want.Kind != KindLong {
			return VerifyError{Msg: "lreturn type mismatch"}
		}
		return nil
	case classfile.OpDReturn:
		v, err := frame.PopCategory2()
		if err != nil {
			return err
		}
		if v.Kind != KindDouble || want.Kind != KindDouble {
			return VerifyError{Msg: "dreturn type mismatch"}
		}
		return nil
	case classfile.OpAReturn:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return VerifyError{Msg: "areturn of non-reference value"}
		}
		if !want.IsReference() {
			return VerifyError{Msg: "areturn from a method with a non-reference return type"}
		}
		if v.Kind == KindNull {
			return nil
		}
		if !IsAssignableTo(want, v, e.Ctx) {
			return VerifyError{Msg: "areturn type mismatch"}
		}
		return nil
	}
	return InternalError{Msg: "unreachable return opcode"}
}

// --- references: fields, methods, objects, arrays -------------------------

func isReferenceOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpGetStatic, classfile.OpPutStatic, classfile.OpGetField, classfile.OpPutField,
		classfile.OpInvokeVirtual, classfile.OpInvokeSpecial, classfile.OpInvokeStatic, classfile.OpInvokeInterface, classfile.OpInvokeDynamic,
		classfile.OpNew, classfile.OpNewArray, classfile.OpANewArray, classfile.OpMultianewarray,
		classfile.OpArrayLength, classfile.OpAThrow, classfile.OpCheckCast, classfile.OpInstanceOf,
		classfile.OpMonitorEnter, classfile.OpMonitorExit:
		return true
	}
	return false
}

func (e Effects) pushField(frame *Frame, ft classfile.FieldType) error {
	vt := FieldTypeToVerificationType(ft)
	if ft.IsCategory2() {
		return frame.PushCategory2(vt)
	}
	return frame.Push(vt)
}

func (e Effects) popField(frame *Frame, ft classfile.FieldType) error {
	if ft.IsCategory2() {
		_, err := frame.PopCategory2()
		return err
	}
	_, err := frame.Pop()
	return err
}

func (e Effects) applyReference(frame *Frame, pc int, in classfile.Instruction) error {
	switch in.Op {
	case classfile.OpGetStatic:
		f, err := e.CP.TryGetFieldRef(in.Index)
		if err != nil {
			return err
		}
		return e.pushField(frame, f.Type)
	case classfile.OpPutStatic:
		f, err := e.CP.TryGetFieldRef(in.Index)
		if err != nil {
			return err
		}
		return e.popField(frame, f.Type)
	case classfile.OpGetField:
		f, err := e.CP.TryGetFieldRef(in.Index)
		if err != nil {
			return err
		}
		ref, err := frame.Pop()
		if err != nil {
			return err
		}
		if !ref.IsReference() {
			return VerifyError{Msg: "getfield on non-reference value"}
		}
		return e.pushField(frame, f.Type)
	case classfile.OpPutField:
		f, err := e.CP.TryGetFieldRef(in.Index)
		if err != nil {
			return err
		}
		if err := e.popField(frame, f.Type); err != nil {
			return err
		}
		ref, err := frame.Pop()
		if err != nil {
			return err
		}
		if !ref.IsReference() {
			return VerifyError{Msg: "putfield on non-reference value"}
		}
		return nil
	case classfile.OpInvokeVirtual, classfile.OpInvokeSpecial, classfile.OpInvokeStatic, classfile.OpInvokeInterface:
		return e.applyInvoke(frame, pc, in)
	case classfile.OpInvokeDynamic:
		m, err := e.CP.TryGetMethodRef(in.Index)
		if err != nil {
			return err
		}
		return e.popPushInvoke(frame, m.Descriptor)
	case classfile.OpNew:
		name, err := e.CP.TryGetClass(in.Index)
		if err != nil {
			return err
		}
		_ = name
		return frame.Push(Uninitialized(pc))
	case classfile.OpNewArray:
		if _, err := frame.Pop(); err != nil {
			return err
		}
		return frame.Push(Object("[" + string(primitiveArrayDescriptor(in.ArrayType))))
	case classfile.OpANewArray:
		if _, err := frame.Pop(); err != nil {
			return err
		}
		class, err := e.CP.TryGetClass(in.Index)
		if err != nil {
			return err
		}
		return frame.Push(Object("[L" + class + ";"))
	case classfile.OpMultianewarray:
		class, err := e.CP.TryGetClass(in.Index)
		if err != nil {
			return err
		}
		for i := byte(0); i < in.Dimensions; i++ {
			v, err := frame.Pop()
			if err != nil {
				return err
			}
			if v.Kind != KindInteger {
				return VerifyError{Msg: "multianewarray dimension is not an int"}
			}
		}
		return frame.Push(Object(class))
	case classfile.OpArrayLength:
		ref, isNull, err := popArrayRef(frame)
		if err != nil {
			return err
		}
		_ = ref
		_ = isNull
		return frame.Push(Integer)
	case classfile.OpAThrow:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return VerifyError{Msg: "athrow of non-reference value"}
		}
		return nil
	case classfile.OpCheckCast:
		ref, err := frame.Pop()
		if err != nil {
			return err
		}
		if !ref.IsReference() {
			return VerifyError{Msg: "checkcast on non-reference value"}
		}
		class, err := e.CP.TryGetClass(in.Index)
		if err != nil {
			return err
		}
		return frame.Push(Object(class))
	case classfile.OpInstanceOf:
		ref, err := frame.Pop()
		if err != nil {
			return err
		}
		if !ref.IsReference() {
			return VerifyError{Msg: "instanceof on non-reference value"}
		}
		return frame.Push(Integer)
	case classfile.OpMonitorEnter, classfile.OpMonitorExit:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return VerifyError{Msg: "monitorenter/monitorexit on non-reference value"}
		}
		return nil
	}
	return InternalError{Msg: "unreachable reference opcode"}
}

func primitiveArrayDescriptor(t classfile.NewArrayType) byte {
	switch t {
	case classfile.ArrayTypeBoolean:
		return 'Z'
	case classfile.ArrayTypeChar:
		return 'C'
	case classfile.ArrayTypeFloat:
		return 'F'
	case classfile.ArrayTypeDouble:
		return 'D'
	case classfile.ArrayTypeByte:
		return 'B'
	case classfile.ArrayTypeShort:
		return 'S'
	case classfile.ArrayTypeInt:
		return 'I'
	case classfile.ArrayTypeLong:
		return 'J'
	default:
		return 'I'
	}
}

func (e Effects) applyInvoke(frame *Frame, pc int, in classfile.Instruction) error {
	m, err := e.CP.TryGetMethodRef(in.Index)
	if err != nil {
		return err
	}
	params, ret, err := classfile.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return err
	}
	for i := len(params) - 1; i >= 0; i-- {
		if params[i].IsCategory2() {
			if _, err := frame.PopCategory2(); err != nil {
				return err
			}
		} else {
			if _, err := frame.Pop(); err != nil {
				return err
			}
		}
	}
	if in.Op != classfile.OpInvokeStatic {
		receiver, err := frame.Pop()
		if err != nil {
			return err
		}
		if !receiver.IsReference() {
			return VerifyError{Msg: "invoke on non-reference receiver"}
		}
		if in.Op == classfile.OpInvokeSpecial && m.Name == "<init>" {
			if receiver.Kind != KindUninitialized && receiver.Kind != KindUninitializedThis {
				return VerifyError{Msg: "invokespecial <init> on an already-initialized receiver"}
			}
			initialized := Object(m.Class)
			frame.ReplaceUninitialized(receiverOffset(receiver), initialized)
		}
	}
	if ret == nil {
		return nil
	}
	return e.pushField(frame, *ret)
}

func receiverOffset(v VerificationType) int {
	if v.Kind == KindUninitializedThis {
		return -1
	}
	return v.NewOffset
}

// popPushInvoke applies an invokedynamic-style descriptor effect without
// a receiver (the call site has no object reference on the stack).
func (e Effects) popPushInvoke(frame *Frame, descriptor string) error {
	params, ret, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return err
	}
	for i := len(params) - 1; i >= 0; i-- {
		if params[i].IsCategory2() {
			if _, err := frame.PopCategory2(); err != nil {
				return err
			}
		} else {
			if _, err := frame.Pop(); err != nil {
				return err
			}
		}
	}
	if ret == nil {
		return nil
	}
	return e.pushField(frame, *ret)
}
