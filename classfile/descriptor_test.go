// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "testing"

func TestParseFieldDescriptor(t *testing.T) {
	tcs := []struct {
		descriptor string
		want       FieldType
	}{
		{"I", FieldType{Base: BaseInt}},
		{"J", FieldType{Base: BaseLong}},
		{"Ljava/lang/String;", FieldType{Base: BaseObject, ClassName: "java/lang/String"}},
		{"[I", FieldType{Base: BaseArray, Element: &FieldType{Base: BaseInt}}},
	}
	for _, tc := range tcs {
		got, err := ParseFieldDescriptor(tc.descriptor)
		if err != nil {
			t.Fatalf("ParseFieldDescriptor(%q): %v", tc.descriptor, err)
		}
		if got.Base != tc.want.Base {
			t.Errorf("ParseFieldDescriptor(%q) base = %v, want %v", tc.descriptor, got.Base, tc.want.Base)
		}
		if got.String() != tc.descriptor {
			t.Errorf("ParseFieldDescriptor(%q).String() = %q", tc.descriptor, got.String())
		}
	}
}

func TestParseFieldDescriptorErrors(t *testing.T) {
	for _, bad := range []string{"", "Q", "Ljava/lang/String", "I garbage"} {
		if _, err := ParseFieldDescriptor(bad); err == nil {
			t.Errorf("ParseFieldDescriptor(%q): expected error", bad)
		}
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret, err := ParseMethodDescriptor("(IJLjava/lang/String;)[I")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(params) != 3 {
		t.Fatalf("got %d params, want 3", len(params))
	}
	if params[0].Base != BaseInt || params[1].Base != BaseLong || params[2].Base != BaseObject {
		t.Errorf("unexpected param types: %+v", params)
	}
	if ret == nil || ret.Base != BaseArray || ret.Element.Base != BaseInt {
		t.Errorf("unexpected return type: %+v", ret)
	}
}

func TestParseMethodDescriptorVoid(t *testing.T) {
	params, ret, err := ParseMethodDescriptor("()V")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(params) != 0 {
		t.Errorf("got %d params, want 0", len(params))
	}
	if ret != nil {
		t.Errorf("got return type %+v, want nil (void)", ret)
	}
}
