// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "strings"

// BaseType identifies the primitive/reference shape of a FieldType.
type BaseType byte

const (
	BaseBoolean BaseType = 'Z'
	BaseByte    BaseType = 'B'
	BaseChar    BaseType = 'C'
	BaseShort   BaseType = 'S'
	BaseInt     BaseType = 'I'
	BaseLong    BaseType = 'J'
	BaseFloat   BaseType = 'F'
	BaseDouble  BaseType = 'D'
	BaseVoid    BaseType = 'V'
	BaseObject  BaseType = 'L'
	BaseArray   BaseType = '['
)

// FieldType is a parsed field or parameter descriptor, e.g. "I", "[I",
// or "Ljava/lang/String;".
type FieldType struct {
	Base BaseType
	// ClassName is populated when Base == BaseObject (no trailing ';').
	ClassName string
	// Element is populated when Base == BaseArray.
	Element *FieldType
}

// IsCategory2 reports whether this type occupies two local/stack slots.
func (f FieldType) IsCategory2() bool {
	return f.Base == BaseLong || f.Base == BaseDouble
}

func (f FieldType) String() string {
	switch f.Base {
	case BaseObject:
		return "L" + f.ClassName + ";"
	case BaseArray:
		return "[" + f.Element.String()
	default:
		return string(f.Base)
	}
}

// ParseFieldDescriptor parses a single field descriptor.
func ParseFieldDescriptor(descriptor string) (FieldType, error) {
	ft, rest, err := parseFieldType(descriptor)
	if err != nil {
		return FieldType{}, err
	}
	if rest != "" {
		return FieldType{}, formatErrorf("trailing data in field descriptor %q", descriptor)
	}
	return ft, nil
}

func parseFieldType(descriptor string) (FieldType, string, error) {
	if descriptor == "" {
		return FieldType{}, "", formatErrorf("empty field descriptor")
	}
	switch BaseType(descriptor[0]) {
	case BaseBoolean, BaseByte, BaseChar, BaseShort, BaseInt, BaseLong, BaseFloat, BaseDouble, BaseVoid:
		return FieldType{Base: BaseType(descriptor[0])}, descriptor[1:], nil
	case BaseObject:
		end := strings.IndexByte(descriptor, ';')
		if end < 0 {
			return FieldType{}, "", formatErrorf("unterminated object descriptor %q", descriptor)
		}
		return FieldType{Base: BaseObject, ClassName: descriptor[1:end]}, descriptor[end+1:], nil
	case BaseArray:
		element, rest, err := parseFieldType(descriptor[1:])
		if err != nil {
			return FieldType{}, "", err
		}
		return FieldType{Base: BaseArray, Element: &element}, rest, nil
	default:
		return FieldType{}, "", formatErrorf("invalid descriptor character %q", descriptor[0])
	}
}

// ParseMethodDescriptor parses a method descriptor of the form
// "(paramTypes)returnType" into its parameter types and optional return
// type (nil for void).
func ParseMethodDescriptor(descriptor string) ([]FieldType, *FieldType, error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return nil, nil, formatErrorf("method descriptor %q missing '('", descriptor)
	}
	rest := descriptor[1:]
	var params []FieldType
	for len(rest) > 0 && rest[0] != ')' {
		ft, next, err := parseFieldType(rest)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, ft)
		rest = next
	}
	if len(rest) == 0 {
		return nil, nil, formatErrorf("method descriptor %q missing ')'", descriptor)
	}
	rest = rest[1:] // consume ')'
	ret, rest, err := parseFieldType(rest)
	if err != nil {
		return nil, nil, err
	}
	if rest != "" {
		return nil, nil, formatErrorf("trailing data in method descriptor %q", descriptor)
	}
	if ret.Base == BaseVoid {
		return params, nil, nil
	}
	return params, &ret, nil
}
