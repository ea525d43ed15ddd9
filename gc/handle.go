// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "reflect"

// Tracer is implemented by allocated types that hold further Gc handles;
// Trace must call TraceChild on every such field so the collector can
// follow the reference graph, per §4.8's ConcurrentMark: "call its
// trace, which enqueues each Gc-typed field."
type Tracer interface {
	Trace(c *Collector)
}

// Finalizer is implemented by allocated types that need to run cleanup
// before being dropped; Finalize is called at most once, during sweep,
// before the object is removed from the registry.
type Finalizer interface {
	Finalize()
}

// box is the heap cell a Gc[T] handle points to. Indirecting through it
// (rather than handing out *T directly from Allocate) gives every
// allocated object a stable address for its lifetime regardless of how
// T is passed around by value.
type box[T any] struct {
	value T
}

// Gc is an owning handle to a collector-tracked object, mirroring the
// original's Gc<T>. The zero value is not valid; obtain one from
// Allocate.
type Gc[T any] struct {
	collector *Collector
	id        uint64
	box       *box[T]
}

// Value returns a pointer to the tracked T. The pointer remains valid
// for as long as any Gc or WeakGc handle referencing the same object is
// reachable from the caller's goroutine.
func (g Gc[T]) Value() *T {
	return &g.box.value
}

// ID returns the handle's registry identity, stable for the object's
// lifetime (§4.8 "Determinism: object identity (hash) is stable").
func (g Gc[T]) ID() uint64 { return g.id }

// Downgrade produces a WeakGc that does not keep the object reachable on
// its own: once the collector has swept it, Upgrade reports ok=false.
func (g Gc[T]) Downgrade() WeakGc[T] {
	return WeakGc[T]{collector: g.collector, id: g.id, box: g.box}
}

// WeakGc is a non-owning reference to a collector-tracked object,
// mirroring the original's distinction between Gc<T> and a weak pointer
// in pointers.rs.
type WeakGc[T any] struct {
	collector *Collector
	id        uint64
	box       *box[T]
}

// Upgrade returns a strong handle to the target, or ok=false if the
// collector has already swept it.
func (w WeakGc[T]) Upgrade() (Gc[T], bool) {
	if w.collector == nil {
		return Gc[T]{}, false
	}
	if _, ok := w.collector.objects.Load(w.id); !ok {
		return Gc[T]{}, false
	}
	return Gc[T]{collector: w.collector, id: w.id, box: w.box}, true
}

// Allocate registers value with c and returns an owning handle, per §6
// allocate<T>(T) → Gc<T>. If T implements Tracer, the collector calls
// Trace on it during ConcurrentMark; if T implements Finalizer, Finalize
// runs once during sweep before the object is dropped.
func Allocate[T any](c *Collector, value T) Gc[T] {
	b := &box[T]{value: value}
	id := c.nextObjectID()

	meta := &objectMetadata{size: approxSize(value)}
	if t, ok := any(&b.value).(Tracer); ok {
		meta.trace = t.Trace
	}
	if f, ok := any(&b.value).(Finalizer); ok {
		meta.finalize = f.Finalize
	}
	meta.drop = func() {} // the box becomes collectible by the Go runtime once unreferenced

	c.objects.Store(id, meta)
	c.recordAllocation(meta.size)
	return Gc[T]{collector: c, id: id, box: b}
}

// approxSize reports T's in-memory size for allocation accounting. It
// does not follow pointers or slice/map backing storage; a Tracer whose
// size matters for threshold tuning can still register accurately sized
// siblings, so this stays a reasonable approximation rather than a
// precise accounting tool.
func approxSize[T any](value T) uint64 {
	return uint64(reflect.TypeOf(value).Size())
}
