// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "github.com/ristretto-jvm/ristretto/classfile"

// FieldTypeToVerificationType maps a descriptor-level FieldType to its
// verification type. Array types are represented as Object whose class
// name is the array's own descriptor (e.g. "[I"), matching how the JVM
// verifier treats array references internally.
func FieldTypeToVerificationType(ft classfile.FieldType) VerificationType {
	switch ft.Base {
	case classfile.BaseInt, classfile.BaseBoolean, classfile.BaseByte, classfile.BaseChar, classfile.BaseShort:
		return Integer
	case classfile.BaseLong:
		return Long
	case classfile.BaseFloat:
		return Float
	case classfile.BaseDouble:
		return Double
	case classfile.BaseObject:
		return Object(ft.ClassName)
	case classfile.BaseArray:
		return Object(ft.String())
	default:
		return Top
	}
}

// arrayElementType returns the FieldType of one element of the array
// whose verification type is arrayType (an Object whose class name is an
// array descriptor, e.g. "[I" or "[[Ljava/lang/String;").
func arrayElementType(arrayType VerificationType) (classfile.FieldType, error) {
	if arrayType.Kind != KindObject || len(arrayType.ClassName) == 0 || arrayType.ClassName[0] != '[' {
		return classfile.FieldType{}, VerifyError{Msg: "expected array type, got " + arrayType.String()}
	}
	return classfile.ParseFieldDescriptor(arrayType.ClassName[1:])
}

func isArrayType(t VerificationType) bool {
	return t.Kind == KindObject && len(t.ClassName) > 0 && t.ClassName[0] == '['
}
