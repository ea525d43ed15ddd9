// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "fmt"

// FormatError is returned when a classfile structure is malformed: a bad
// constant pool index, a truncated instruction encoding, or a Code
// attribute whose declared length does not match its instructions.
type FormatError struct {
	Msg string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("class format error: %s", e.Msg)
}

func formatErrorf(format string, args ...interface{}) error {
	return FormatError{Msg: fmt.Sprintf(format, args...)}
}
