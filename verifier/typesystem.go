// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package verifier implements the JVM bytecode verifier: a dataflow
// type-checker with a StackMapTable-driven fast path and a worklist
// fallback, per JVMS §4.10.1.
package verifier

import "fmt"

// Kind tags the variants of VerificationType.
type Kind byte

const (
	KindTop Kind = iota
	KindInteger
	KindFloat
	KindLong
	KindDouble
	KindNull
	KindUninitializedThis
	KindUninitialized
	KindObject
)

// VerificationType is a single slot's static type during verification.
// Long and Double are category-2: they occupy two adjacent slots, with
// Top as the upper half.
type VerificationType struct {
	Kind Kind
	// ClassName is populated when Kind == KindObject.
	ClassName string
	// NewOffset is populated when Kind == KindUninitialized: the bytecode
	// offset of the `new` instruction that produced it.
	NewOffset int
}

var (
	Top               = VerificationType{Kind: KindTop}
	Integer           = VerificationType{Kind: KindInteger}
	Float             = VerificationType{Kind: KindFloat}
	Long              = VerificationType{Kind: KindLong}
	Double            = VerificationType{Kind: KindDouble}
	Null              = VerificationType{Kind: KindNull}
	UninitializedThis = VerificationType{Kind: KindUninitializedThis}
)

// Object constructs an Object(class_name) verification type.
func Object(className string) VerificationType {
	return VerificationType{Kind: KindObject, ClassName: className}
}

// Uninitialized constructs an Uninitialized(offset) verification type.
func Uninitialized(offset int) VerificationType {
	return VerificationType{Kind: KindUninitialized, NewOffset: offset}
}

// IsCategory2 reports whether this type occupies two stack/local slots.
func (v VerificationType) IsCategory2() bool {
	return v.Kind == KindLong || v.Kind == KindDouble
}

// IsReference reports whether v is a reference type (object, array,
// null, or one of the uninitialized variants) as opposed to a primitive.
func (v VerificationType) IsReference() bool {
	switch v.Kind {
	case KindObject, KindNull, KindUninitializedThis, KindUninitialized:
		return true
	default:
		return false
	}
}

func (v VerificationType) String() string {
	switch v.Kind {
	case KindTop:
		return "top"
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindNull:
		return "null"
	case KindUninitializedThis:
		return "uninitializedThis"
	case KindUninitialized:
		return fmt.Sprintf("uninitialized(%d)", v.NewOffset)
	case KindObject:
		return v.ClassName
	default:
		return "?"
	}
}

func (v VerificationType) equal(o VerificationType) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindObject:
		return v.ClassName == o.ClassName
	case KindUninitialized:
		return v.NewOffset == o.NewOffset
	default:
		return true
	}
}

// Context is the class-hierarchy oracle the verifier needs, matching §6's
// VerificationContext exactly: any implementation satisfying these three
// queries is sufficient. The classloader, class-hierarchy analysis, and
// everything else that would answer them stay out of scope here.
type Context interface {
	// IsSubclass reports whether sub is sub (or equal to) sup.
	IsSubclass(sub, sup string) bool
	// IsAssignable reports whether a value of type source may be used
	// where target is expected.
	IsAssignable(target, source string) bool
	// CommonSuperclass returns the most specific common superclass of a
	// and b (possibly "java/lang/Object").
	CommonSuperclass(a, b string) string
}

// IsAssignableTo implements §4.3's assignability relation.
func IsAssignableTo(target, source VerificationType, ctx Context) bool {
	if target.equal(source) {
		return true
	}
	switch {
	case source.Kind == KindNull:
		return target.IsReference() && target.Kind != KindUninitializedThis && target.Kind != KindUninitialized
	case target.Kind == KindInteger, target.Kind == KindFloat, target.Kind == KindLong, target.Kind == KindDouble:
		return false // non-equal primitives are never assignable
	case target.Kind == KindObject && source.Kind == KindObject:
		return ctx.IsAssignable(target.ClassName, source.ClassName)
	case target.Kind == KindUninitializedThis, target.Kind == KindUninitialized:
		return false // only assignable to an identical uninitialized variant, handled by equal() above
	case target.Kind == KindTop:
		return source.Kind == KindTop
	default:
		return false
	}
}

// MergeOne computes the least-upper-bound of two verification types in
// the lattice described by §4.2: equal types are unchanged, two object
// types widen to their common superclass, any other mismatch collapses
// to Top. changed reports whether the result differs from a, the
// receiver's current slot — not merely whether a and b differed — so a
// caller merging the same stable value into a slot that already holds it
// (e.g. Object(A) merged with Null, which stays Object(A)) doesn't
// re-enqueue its successors for no reason.
func MergeOne(a, b VerificationType, ctx Context) (result VerificationType, changed bool) {
	if a.equal(b) {
		return a, false
	}
	if a.Kind == KindObject && b.Kind == KindObject {
		merged := Object(ctx.CommonSuperclass(a.ClassName, b.ClassName))
		return merged, !merged.equal(a)
	}
	if a.Kind == KindNull && b.Kind == KindObject {
		return b, true
	}
	if b.Kind == KindNull && a.Kind == KindObject {
		return a, false
	}
	if a.Kind == KindNull && b.Kind == KindNull {
		return Null, false
	}
	// UninitializedThis merged through exception handlers: per the open
	// question in §9, treat as Top unless both sides carry the identical
	// uninitialized offset (handled by the equal() check above).
	return Top, a.Kind != KindTop
}
