// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

// Tag identifies the kind of a constant pool entry, matching the
// single-byte tags used on disk.
type Tag byte

const (
	TagUTF8              Tag = 1
	TagInteger           Tag = 3
	TagFloat             Tag = 4
	TagLong              Tag = 5
	TagDouble            Tag = 6
	TagClass             Tag = 7
	TagString            Tag = 8
	TagFieldref          Tag = 9
	TagMethodref         Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType       Tag = 12
	TagMethodHandle      Tag = 15
	TagMethodType        Tag = 16
	TagInvokeDynamic     Tag = 18
)

// Constant is a single constant pool entry. Not every field is populated
// for every tag; callers use the accessors on ConstantPool rather than
// inspecting entries directly.
type Constant struct {
	Tag      Tag
	UTF8     string
	Int      int32
	Long     int64
	Float    float32
	Double   float64
	// NameIndex/ClassIndex/NameAndTypeIndex/DescriptorIndex index into the
	// same pool and are resolved lazily by the accessor methods.
	NameIndex         uint16
	ClassIndex        uint16
	NameAndTypeIndex  uint16
	DescriptorIndex   uint16
}

// ConstantPool is the minimal view of a classfile constant pool the
// verifier needs: name/class/field-ref/method-ref lookups. It deliberately
// does not model the full on-disk constant pool (loadable constants,
// bootstrap methods, module/package entries) — those stay with the
// classfile reader, an external collaborator per the verifier's scope.
type ConstantPool struct {
	// entries is 1-indexed to match the classfile format; entries[0] is
	// unused, and long/double entries occupy two consecutive slots.
	entries []Constant
}

// NewConstantPool builds a pool from entries already indexed 1..len(entries)-1.
func NewConstantPool(entries []Constant) *ConstantPool {
	return &ConstantPool{entries: entries}
}

func (cp *ConstantPool) get(index uint16) (Constant, error) {
	if cp == nil || int(index) <= 0 || int(index) >= len(cp.entries) {
		return Constant{}, formatErrorf("constant pool index %d out of range", index)
	}
	return cp.entries[index], nil
}

// TryGetUTF8 resolves a UTF8 constant.
func (cp *ConstantPool) TryGetUTF8(index uint16) (string, error) {
	c, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUTF8 {
		return "", formatErrorf("constant pool index %d is not Utf8", index)
	}
	return c.UTF8, nil
}

// TryGetClass resolves a Class constant to its binary name.
func (cp *ConstantPool) TryGetClass(index uint16) (string, error) {
	c, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagClass {
		return "", formatErrorf("constant pool index %d is not Class", index)
	}
	return cp.TryGetUTF8(c.NameIndex)
}

// FieldRef is a resolved field reference: owning class and field type.
type FieldRef struct {
	Class string
	Name  string
	Type  FieldType
}

// MethodRef is a resolved method reference: owning class and descriptor.
type MethodRef struct {
	Class      string
	Name       string
	Descriptor string
}

// TryGetFieldRef resolves a Fieldref constant.
func (cp *ConstantPool) TryGetFieldRef(index uint16) (FieldRef, error) {
	c, err := cp.get(index)
	if err != nil {
		return FieldRef{}, err
	}
	if c.Tag != TagFieldref {
		return FieldRef{}, formatErrorf("constant pool index %d is not Fieldref", index)
	}
	class, err := cp.TryGetClass(c.ClassIndex)
	if err != nil {
		return FieldRef{}, err
	}
	name, descriptor, err := cp.nameAndType(c.NameAndTypeIndex)
	if err != nil {
		return FieldRef{}, err
	}
	ft, err := ParseFieldDescriptor(descriptor)
	if err != nil {
		return FieldRef{}, err
	}
	return FieldRef{Class: class, Name: name, Type: ft}, nil
}

// TryGetMethodRef resolves a Methodref or InterfaceMethodref constant.
func (cp *ConstantPool) TryGetMethodRef(index uint16) (MethodRef, error) {
	c, err := cp.get(index)
	if err != nil {
		return MethodRef{}, err
	}
	if c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref {
		return MethodRef{}, formatErrorf("constant pool index %d is not a method reference", index)
	}
	class, err := cp.TryGetClass(c.ClassIndex)
	if err != nil {
		return MethodRef{}, err
	}
	name, descriptor, err := cp.nameAndType(c.NameAndTypeIndex)
	if err != nil {
		return MethodRef{}, err
	}
	return MethodRef{Class: class, Name: name, Descriptor: descriptor}, nil
}

func (cp *ConstantPool) nameAndType(index uint16) (name, descriptor string, err error) {
	c, err := cp.get(index)
	if err != nil {
		return "", "", err
	}
	if c.Tag != TagNameAndType {
		return "", "", formatErrorf("constant pool index %d is not NameAndType", index)
	}
	name, err = cp.TryGetUTF8(c.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.TryGetUTF8(c.DescriptorIndex)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// TryGetLoadableType resolves the type an ldc/ldc_w/ldc2_w instruction
// pushes, without materializing the runtime value (out of scope here).
func (cp *ConstantPool) TryGetLoadableType(index uint16) (Tag, error) {
	c, err := cp.get(index)
	if err != nil {
		return 0, err
	}
	switch c.Tag {
	case TagInteger, TagFloat, TagLong, TagDouble, TagString, TagClass, TagMethodHandle, TagMethodType, TagInvokeDynamic:
		return c.Tag, nil
	default:
		return 0, formatErrorf("constant pool index %d is not loadable", index)
	}
}
