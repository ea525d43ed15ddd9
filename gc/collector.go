// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gc implements a low-pause, concurrent mark-sweep collector
// layered over Go's own memory-safe runtime: it tracks a reachability
// graph of Gc[T] handles independently of Go's real garbage collector,
// giving callers deterministic finalization order and collection
// statistics the runtime GC does not expose, per §4.8/§4.9.
package gc

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type phase int32

const (
	phaseIdle phase = iota
	phaseInitialMark
	phaseConcurrentMark
	phaseFinalMark
	phaseConcurrentSweep
)

// Collector is the garbage collector instance: one dedicated worker
// goroutine waiting on a condition variable, per §5. The zero value is
// not valid; use New.
type Collector struct {
	config Configuration

	objects *shardMap[*objectMetadata]
	roots   *shardMap[rootEntry]

	nextObjID atomic.Uint64
	nextRoot  atomic.Uint64

	phase atomic.Int32

	bytesAllocated atomic.Uint64

	markMu    sync.Mutex
	markQueue []uint64

	statsMu sync.Mutex
	stats   Statistics

	triggerMu sync.Mutex
	triggerCv *sync.Cond
	triggered bool
	shutdown  atomic.Bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a collector with the given options applied over the
// defaults. The collector does no work until Start is called.
func New(opts ...Option) *Collector {
	cfg := defaultConfiguration()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Collector{
		config:  cfg,
		objects: newShardMap[*objectMetadata](),
		roots:   newShardMap[rootEntry](),
	}
	c.triggerCv = sync.NewCond(&c.triggerMu)
	return c
}

var (
	globalOnce     sync.Once
	globalInstance *Collector
)

// Global returns the process-wide collector singleton, created and
// started on first use, per §9 "the collector instance is a single
// process-wide singleton created once at startup".
func Global() *Collector {
	globalOnce.Do(func() {
		globalInstance = New()
		globalInstance.Start()
	})
	return globalInstance
}

// Start launches the background collector goroutine. Calling Start more
// than once has no additional effect.
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.loop()
	})
}

// Stop signals the background goroutine to finish its current cycle (if
// any) and exit, then waits for it to do so. Stop is idempotent, per §6
// GarbageCollector::stop() being idempotent.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		c.shutdown.Store(true)
		c.triggerMu.Lock()
		c.triggered = true
		c.triggerCv.Broadcast()
		c.triggerMu.Unlock()
		c.wg.Wait()
	})
}

func (c *Collector) loop() {
	defer c.wg.Done()
	for {
		c.triggerMu.Lock()
		for !c.triggered && !c.shutdown.Load() {
			c.triggerCv.Wait()
		}
		shouldCollect := c.triggered && !c.shutdown.Load()
		if shouldCollect {
			c.triggered = false
		}
		shuttingDown := c.shutdown.Load()
		c.triggerMu.Unlock()

		if shouldCollect {
			c.runCycle()
		}
		if shuttingDown {
			return
		}
	}
}

// Collect requests a collection cycle. It does not block for the cycle
// to run; the background goroutine wakes and performs it, per §6
// collect().
func (c *Collector) Collect() {
	c.triggerMu.Lock()
	c.triggered = true
	c.triggerCv.Signal()
	c.triggerMu.Unlock()
}

func (c *Collector) recordAllocation(size uint64) {
	total := c.bytesAllocated.Add(size)
	if total >= c.config.AllocationThreshold {
		c.Collect()
	}
}

func (c *Collector) subBytesAllocated(n uint64) {
	if n == 0 {
		return
	}
	c.bytesAllocated.Add(^(n - 1))
}

func (c *Collector) nextObjectID() uint64 { return c.nextObjID.Add(1) }
func (c *Collector) nextRootID() uint64   { return c.nextRoot.Add(1) }

func (c *Collector) currentPhase() phase { return phase(c.phase.Load()) }
func (c *Collector) setPhase(p phase)    { c.phase.Store(int32(p)) }

// enqueueMark appends id to the mark queue unconditionally, used by
// initial mark (seeding roots) where every root must be queued.
func (c *Collector) enqueueMark(id uint64) {
	c.markMu.Lock()
	c.markQueue = append(c.markQueue, id)
	c.markMu.Unlock()
}

// tryEnqueueMark appends id if the mark queue is not currently locked by
// another goroutine, returning false on contention. This is the shape
// §5 describes for mutators: "try-lock and skip on contention (safe
// because uncontended traces will re-enqueue through the write barrier
// or final-mark)".
func (c *Collector) tryEnqueueMark(id uint64) bool {
	if !c.markMu.TryLock() {
		return false
	}
	c.markQueue = append(c.markQueue, id)
	c.markMu.Unlock()
	return true
}

func (c *Collector) popMark() (uint64, bool) {
	c.markMu.Lock()
	defer c.markMu.Unlock()
	if len(c.markQueue) == 0 {
		return 0, false
	}
	id := c.markQueue[0]
	c.markQueue = c.markQueue[1:]
	return id, true
}

// WriteBarrier records that a mutator stored handle into a reachable
// structure. If the collector is mid-ConcurrentMark, handle's target is
// enqueued so it survives this cycle even if every other path to it is
// subsequently removed (§4.8 "Write barrier", testable property 8).
// Mutator stores outside of ConcurrentMark need no barrier: InitialMark
// hasn't snapshotted roots yet, and FinalMark/ConcurrentSweep only run
// after ConcurrentMark has drained every store the barrier could have
// caught, so anything still reachable is already marked.
func WriteBarrier[T any](c *Collector, handle Gc[T]) {
	if c.currentPhase() == phaseConcurrentMark {
		c.tryEnqueueMark(handle.id)
	}
}

// TraceChild records that handle is reachable from the object currently
// being traced. Call this from a Tracer.Trace implementation for every
// Gc-typed field, in place of WriteBarrier: unlike a mutator's store,
// which only needs recording while ConcurrentMark is racing against it,
// trace itself runs from the collector's own mark loop — during
// ConcurrentMark or FinalMark — and must always enqueue what it
// discovers, or a child first reached while draining FinalMark's queue
// is silently dropped.
func TraceChild[T any](c *Collector, handle Gc[T]) {
	c.enqueueMark(handle.id)
}

// Statistics returns a snapshot of collector activity, per §6
// statistics() → Statistics.
func (c *Collector) Statistics() Statistics {
	c.statsMu.Lock()
	s := c.stats
	c.statsMu.Unlock()
	s.BytesAllocated = c.bytesAllocated.Load()
	return s
}

func (c *Collector) runCycle() {
	start := time.Now()
	c.statsMu.Lock()
	c.stats.CollectionsStarted++
	c.statsMu.Unlock()

	c.initialMark()
	c.concurrentMark()
	c.finalMark()
	bytesFreed, objectsSwept := c.concurrentSweep()
	c.setPhase(phaseIdle)

	duration := time.Since(start)
	c.statsMu.Lock()
	c.stats.CollectionsCompleted++
	c.stats.BytesFreed += bytesFreed
	c.stats.ObjectsSwept += objectsSwept
	c.stats.LastCollectionDuration = duration
	c.stats.TotalCollectionTime += duration
	c.statsMu.Unlock()

	logger.Printf("collection cycle completed in %s, freed %d objects (%d bytes)", duration, objectsSwept, bytesFreed)
}

// initialMark clears every mark bit, then seeds the mark queue with
// every root's target, per §4.8 phase 1.
func (c *Collector) initialMark() {
	c.setPhase(phaseInitialMark)
	c.markMu.Lock()
	c.markQueue = c.markQueue[:0]
	c.markMu.Unlock()

	unmark := func(_ uint64, m *objectMetadata) { m.unmark() }
	if c.objects.Len() > c.config.ParallelThreshold {
		c.parallelForEachObject(unmark)
	} else {
		c.objects.ForEach(unmark)
	}

	c.roots.ForEach(func(_ uint64, r rootEntry) {
		c.enqueueMark(r.objectID)
	})
}

// concurrentMark drains the mark queue, marking and tracing each object
// the first time it's seen (try_mark's cycle-breaking contract), per
// §4.8 phase 2.
func (c *Collector) concurrentMark() {
	c.setPhase(phaseConcurrentMark)
	c.drainMarkQueue()
}

// finalMark handles anything the write barrier appended after
// concurrentMark's queue went empty but before the phase changed, per
// §4.8 phase 3.
func (c *Collector) finalMark() {
	c.setPhase(phaseFinalMark)
	c.drainMarkQueue()
}

func (c *Collector) drainMarkQueue() {
	for {
		id, ok := c.popMark()
		if !ok {
			return
		}
		meta, exists := c.objects.Load(id)
		if !exists {
			continue
		}
		if meta.mark() && meta.trace != nil {
			meta.trace(c)
		}
	}
}

type sweepVictim struct {
	id   uint64
	meta *objectMetadata
}

// concurrentSweep removes every unmarked object, running its finalizer
// (if any) and releasing the collector's reference to it, per §4.8
// phase 4.
func (c *Collector) concurrentSweep() (bytesFreed, objectsSwept uint64) {
	c.setPhase(phaseConcurrentSweep)

	var mu sync.Mutex
	var victims []sweepVictim
	collect := func(id uint64, m *objectMetadata) {
		if m.isMarked() {
			return
		}
		mu.Lock()
		victims = append(victims, sweepVictim{id: id, meta: m})
		mu.Unlock()
	}

	if c.objects.Len() > c.config.ParallelThreshold {
		c.parallelForEachObject(collect)
	} else {
		c.objects.ForEach(collect)
	}

	for _, v := range victims {
		if _, ok := c.objects.Delete(v.id); !ok {
			continue
		}
		if v.meta.finalize != nil {
			v.meta.finalize()
		}
		v.meta.drop()
		bytesFreed += v.meta.size
		objectsSwept++
	}
	c.subBytesAllocated(bytesFreed)
	return bytesFreed, objectsSwept
}

// parallelForEachObject fans fn out across the object registry's shards
// using an errgroup worker pool, used once the registry exceeds
// Configuration.ParallelThreshold (§5's "rayon-style parallel pool when
// object counts exceed a threshold").
func (c *Collector) parallelForEachObject(fn func(uint64, *objectMetadata)) {
	workers := resolveThreads(c.config.Threads)
	totalShards := c.objects.Shards()
	if workers > totalShards {
		workers = totalShards
	}
	shardsPerWorker := (totalShards + workers - 1) / workers

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		start := w * shardsPerWorker
		end := start + shardsPerWorker
		if start >= totalShards {
			break
		}
		if end > totalShards {
			end = totalShards
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				c.objects.ForEachInShard(i, fn)
			}
			return nil
		})
	}
	_ = g.Wait()
}
