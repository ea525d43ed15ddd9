// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

// openWorldContext answers class-hierarchy questions without a loaded
// classpath: every class is assumed assignable to itself and to
// java/lang/Object, and no other relationship is assumed. Full
// class-hierarchy analysis needs a classpath to resolve superclasses
// against, which is out of scope for a single-classfile CLI (§"Non-goals");
// wiring a real classloader is future work for whatever embeds this
// package with one.
type openWorldContext struct{}

const objectClass = "java/lang/Object"

func (openWorldContext) IsSubclass(sub, sup string) bool {
	return sub == sup || sup == objectClass
}

func (openWorldContext) IsAssignable(target, source string) bool {
	return target == source || target == objectClass
}

func (openWorldContext) CommonSuperclass(a, b string) string {
	if a == b {
		return a
	}
	return objectClass
}
