// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpAConstNull: "aconst_null",
	OpIConstM1: "iconst_m1", OpIConst0: "iconst_0", OpIConst1: "iconst_1",
	OpIConst2: "iconst_2", OpIConst3: "iconst_3", OpIConst4: "iconst_4", OpIConst5: "iconst_5",
	OpLConst0: "lconst_0", OpLConst1: "lconst_1",
	OpFConst0: "fconst_0", OpFConst1: "fconst_1", OpFConst2: "fconst_2",
	OpDConst0: "dconst_0", OpDConst1: "dconst_1",
	OpBIPush: "bipush", OpSIPush: "sipush",
	OpLdc: "ldc", OpLdcW: "ldc_w", OpLdc2W: "ldc2_w",
	OpILoad: "iload", OpLLoad: "lload", OpFLoad: "fload", OpDLoad: "dload", OpALoad: "aload",
	OpIALoad: "iaload", OpLALoad: "laload", OpFALoad: "faload", OpDALoad: "daload",
	OpAALoad: "aaload", OpBALoad: "baload", OpCALoad: "caload", OpSALoad: "saload",
	OpIStore: "istore", OpLStore: "lstore", OpFStore: "fstore", OpDStore: "dstore", OpAStore: "astore",
	OpIAStore: "iastore", OpLAStore: "lastore", OpFAStore: "fastore", OpDAStore: "dastore",
	OpAAStore: "aastore", OpBAStore: "bastore", OpCAStore: "castore", OpSAStore: "sastore",
	OpPop: "pop", OpPop2: "pop2", OpDup: "dup", OpDupX1: "dup_x1", OpDupX2: "dup_x2",
	OpDup2: "dup2", OpDup2X1: "dup2_x1", OpDup2X2: "dup2_x2", OpSwap: "swap",
	OpIAdd: "iadd", OpLAdd: "ladd", OpFAdd: "fadd", OpDAdd: "dadd",
	OpISub: "isub", OpLSub: "lsub", OpFSub: "fsub", OpDSub: "dsub",
	OpIMul: "imul", OpLMul: "lmul", OpFMul: "fmul", OpDMul: "dmul",
	OpIDiv: "idiv", OpLDiv: "ldiv", OpFDiv: "fdiv", OpDDiv: "ddiv",
	OpIRem: "irem", OpLRem: "lrem", OpFRem: "frem", OpDRem: "drem",
	OpINeg: "ineg", OpLNeg: "lneg", OpFNeg: "fneg", OpDNeg: "dneg",
	OpIShl: "ishl", OpLShl: "lshl", OpIShr: "ishr", OpLShr: "lshr",
	OpIUShr: "iushr", OpLUShr: "lushr",
	OpIAnd: "iand", OpLAnd: "land", OpIOr: "ior", OpLOr: "lor", OpIXor: "ixor", OpLXor: "lxor",
	OpIInc: "iinc",
	OpI2L: "i2l", OpI2F: "i2f", OpI2D: "i2d", OpL2I: "l2i", OpL2F: "l2f", OpL2D: "l2d",
	OpF2I: "f2i", OpF2L: "f2l", OpF2D: "f2d", OpD2I: "d2i", OpD2L: "d2l", OpD2F: "d2f",
	OpI2B: "i2b", OpI2C: "i2c", OpI2S: "i2s",
	OpLCmp: "lcmp", OpFCmpL: "fcmpl", OpFCmpG: "fcmpg", OpDCmpL: "dcmpl", OpDCmpG: "dcmpg",
	OpIfEq: "ifeq", OpIfNe: "ifne", OpIfLt: "iflt", OpIfGe: "ifge", OpIfGt: "ifgt", OpIfLe: "ifle",
	OpIfICmpEq: "if_icmpeq", OpIfICmpNe: "if_icmpne", OpIfICmpLt: "if_icmplt",
	OpIfICmpGe: "if_icmpge", OpIfICmpGt: "if_icmpgt", OpIfICmpLe: "if_icmple",
	OpIfACmpEq: "if_acmpeq", OpIfACmpNe: "if_acmpne",
	OpGoto: "goto", OpJsr: "jsr", OpRet: "ret",
	OpTableSwitch: "tableswitch", OpLookupSwitch: "lookupswitch",
	OpIReturn: "ireturn", OpLReturn: "lreturn", OpFReturn: "freturn", OpDReturn: "dreturn",
	OpAReturn: "areturn", OpReturn: "return",
	OpGetStatic: "getstatic", OpPutStatic: "putstatic", OpGetField: "getfield", OpPutField: "putfield",
	OpInvokeVirtual: "invokevirtual", OpInvokeSpecial: "invokespecial",
	OpInvokeStatic: "invokestatic", OpInvokeInterface: "invokeinterface", OpInvokeDynamic: "invokedynamic",
	OpNew: "new", OpNewArray: "newarray", OpANewArray: "anewarray", OpMultianewarray: "multianewarray",
	OpArrayLength: "arraylength", OpAThrow: "athrow",
	OpCheckCast: "checkcast", OpInstanceOf: "instanceof",
	OpMonitorEnter: "monitorenter", OpMonitorExit: "monitorexit",
	OpGotoW: "goto_w", OpJsrW: "jsr_w", OpIfNull: "ifnull", OpIfNonNull: "ifnonnull",
}
