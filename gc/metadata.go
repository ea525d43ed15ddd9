// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "sync/atomic"

// objectMetadata is the bookkeeping record kept for every allocated
// object, per §4.8's "GcMetadata": an atomic mark bit, its size in
// bytes, and closures that know how to trace, drop, and (if the object
// is finalizable) finalize the concrete value the registry itself is
// generic over.
type objectMetadata struct {
	marked atomic.Bool
	size   uint64

	// trace enqueues every Gc-typed field of the object for marking. nil
	// for leaf objects (no outgoing references).
	trace func(*Collector)
	// finalize runs once, before drop, during sweep. nil unless the
	// allocated type implements Finalizer.
	finalize func()
	// drop runs after finalize when the object is swept. Allocate installs
	// a no-op: removing the registry entry is what releases the
	// collector's own reference, leaving the Go runtime to reclaim the
	// object once nothing else holds it.
	drop func()
}

// mark attempts to transition the mark bit false -> true, returning
// true only the first time, per §4.8's try_mark cycle-detection
// contract (testable property 9).
func (m *objectMetadata) mark() bool {
	return m.marked.CompareAndSwap(false, true)
}

func (m *objectMetadata) unmark() {
	m.marked.Store(false)
}

func (m *objectMetadata) isMarked() bool {
	return m.marked.Load()
}
