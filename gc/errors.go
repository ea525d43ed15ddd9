// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

// InternalError reports a collector contract violation: a shutdown-path
// lock failure or similar condition that §7 says must be logged rather
// than propagated to mutators.
type InternalError struct {
	Msg string
}

func (e InternalError) Error() string {
	return "gc: internal error: " + e.Msg
}
