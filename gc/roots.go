// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

// rootEntry is the value stored per root ID: enough to re-enqueue the
// root's target for marking without knowing T at the registry's call
// site, mirroring the original's TracePtr stored per root.
type rootEntry struct {
	objectID uint64
	enqueue  func(*Collector)
}

// AddRoot registers g as a garbage collection root and returns a stable,
// monotonically increasing root ID, per §4.9 and §6's add_root. If the
// collector is mid-ConcurrentMark, the root's target is enqueued
// immediately so a root added during marking is never missed.
func AddRoot[T any](c *Collector, g Gc[T]) uint64 {
	rootID := c.nextRootID()
	entry := rootEntry{
		objectID: g.id,
		enqueue:  func(col *Collector) { col.enqueueMark(g.id) },
	}
	c.roots.Store(rootID, entry)
	if c.currentPhase() == phaseConcurrentMark {
		c.enqueueMark(g.id)
	}
	return rootID
}

// RemoveRoot removes a root by ID. It is a no-op if rootID is unknown
// (e.g. a RootGuard closed twice).
func (c *Collector) RemoveRoot(rootID uint64) {
	c.roots.Delete(rootID)
}

// RootGuard removes its root when Close is called, mirroring the
// original's GcRootGuard RAII behavior without relying on a finalizer to
// run the removal (Go has no deterministic Drop).
type RootGuard struct {
	collector *Collector
	rootID    uint64
	closed    bool
}

// Close removes the guarded root. Calling Close more than once is safe.
func (g *RootGuard) Close() {
	if g.closed {
		return
	}
	g.closed = true
	g.collector.RemoveRoot(g.rootID)
}

// CreateRootGuard adds g as a root and returns a guard that removes it
// again on Close, per §6 create_root_guard(Gc<T>) → Guard.
func CreateRootGuard[T any](c *Collector, g Gc[T]) *RootGuard {
	id := AddRoot(c, g)
	return &RootGuard{collector: c, rootID: id}
}
