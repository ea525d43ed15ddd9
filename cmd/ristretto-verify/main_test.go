// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ristretto-jvm/ristretto/classfile"
)

// classBuilder assembles a minimal classfile byte sequence, mirroring the
// fixture builder in internal/classreader's tests.
type classBuilder struct {
	buf bytes.Buffer
}

func (b *classBuilder) u8(v byte)    { b.buf.WriteByte(v) }
func (b *classBuilder) u16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
}
func (b *classBuilder) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}
func (b *classBuilder) utf8(s string) {
	b.u8(byte(classfile.TagUTF8))
	b.u16(uint16(len(s)))
	b.buf.WriteString(s)
}
func (b *classBuilder) class(nameIdx uint16) {
	b.u8(byte(classfile.TagClass))
	b.u16(nameIdx)
}

// writeClassFile builds a one-method m()V{return} classfile and writes it
// to a temp file, returning its path.
func writeClassFile(t *testing.T) string {
	t.Helper()
	var b classBuilder
	b.u32(0xCAFEBABE)
	b.u16(0)
	b.u16(52)

	b.u16(6)
	b.utf8("Main")
	b.class(1)
	b.utf8("m")
	b.utf8("()V")
	b.utf8("Code")

	b.u16(0)
	b.u16(2)
	b.u16(0)
	b.u16(0)
	b.u16(0)

	b.u16(1)
	b.u16(uint16(classfile.AccStatic))
	b.u16(3)
	b.u16(4)
	b.u16(1)

	var code classBuilder
	code.u16(0)
	code.u16(0)
	code.u32(1)
	code.u8(byte(classfile.OpReturn))
	code.u16(0)
	code.u16(0)

	b.u16(5)
	codeBytes := code.buf.Bytes()
	b.u32(uint32(len(codeBytes)))
	b.buf.Write(codeBytes)

	b.u16(0)

	path := filepath.Join(t.TempDir(), "Main.class")
	if err := os.WriteFile(path, b.buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVerifyFileAcceptsTrivialMethod(t *testing.T) {
	path := writeClassFile(t)
	if err := verifyFile(path, false, false); err != nil {
		t.Fatalf("verifyFile: %v", err)
	}
}

func TestVerifyFileRejectsMissingFile(t *testing.T) {
	if err := verifyFile(filepath.Join(t.TempDir(), "missing.class"), false, false); err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
}
