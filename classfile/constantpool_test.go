// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "testing"

// buildTestPool constructs a small constant pool equivalent to:
//
//	#1 = Utf8               Main
//	#2 = Class               #1
//	#3 = Utf8               I
//	#4 = Utf8               count
//	#5 = NameAndType        #4:#3
//	#6 = Fieldref           #2.#5
func buildTestPool() *ConstantPool {
	entries := make([]Constant, 7)
	entries[1] = Constant{Tag: TagUTF8, UTF8: "Main"}
	entries[2] = Constant{Tag: TagClass, NameIndex: 1}
	entries[3] = Constant{Tag: TagUTF8, UTF8: "I"}
	entries[4] = Constant{Tag: TagUTF8, UTF8: "count"}
	entries[5] = Constant{Tag: TagNameAndType, NameIndex: 4, DescriptorIndex: 3}
	entries[6] = Constant{Tag: TagFieldref, ClassIndex: 2, NameAndTypeIndex: 5}
	return NewConstantPool(entries)
}

func TestConstantPoolLookups(t *testing.T) {
	cp := buildTestPool()

	class, err := cp.TryGetClass(2)
	if err != nil || class != "Main" {
		t.Fatalf("TryGetClass(2) = %q, %v", class, err)
	}

	field, err := cp.TryGetFieldRef(6)
	if err != nil {
		t.Fatalf("TryGetFieldRef(6): %v", err)
	}
	if field.Class != "Main" || field.Name != "count" || field.Type.Base != BaseInt {
		t.Errorf("unexpected field ref: %+v", field)
	}

	if _, err := cp.TryGetClass(6); err == nil {
		t.Errorf("TryGetClass(6): expected error, index is a Fieldref")
	}
	if _, err := cp.TryGetUTF8(0); err == nil {
		t.Errorf("TryGetUTF8(0): expected out-of-range error")
	}
}
