// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"io"
	"log"
	"os"
)

// Debug switches the package logger between discarding output and
// writing to stderr, mirroring verifier/log.go and the teacher's
// validate/log.go.
var Debug = false

var logger *log.Logger

func init() {
	var w io.Writer = io.Discard
	if Debug {
		w = os.Stderr
	}
	logger = log.New(w, "gc: ", log.Lshortfile)
}
