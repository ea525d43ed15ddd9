// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"runtime"
	"time"
)

// Configuration controls the collector's worker count and triggering
// thresholds, per §4.8/§5.
type Configuration struct {
	// Threads is the size of the parallel pool used for mark/sweep fan-out
	// once ParallelThreshold is crossed. 0 selects half of
	// runtime.NumCPU(), at least 1, matching the original's
	// physical-core-count default.
	Threads int
	// AllocationThreshold is the cumulative byte count that triggers an
	// automatic collection cycle.
	AllocationThreshold uint64
	// ParallelThreshold is the object count above which unmark/sweep fan
	// out across the worker pool instead of running inline.
	ParallelThreshold int
}

// Option configures a Configuration; see New.
type Option func(*Configuration)

// WithThreads overrides the parallel pool size.
func WithThreads(n int) Option {
	return func(c *Configuration) { c.Threads = n }
}

// WithAllocationThreshold overrides the byte threshold that triggers an
// automatic collection.
func WithAllocationThreshold(bytes uint64) Option {
	return func(c *Configuration) { c.AllocationThreshold = bytes }
}

// WithParallelThreshold overrides the object count above which the
// initial-mark unmark pass and the sweep scan fan out across the worker
// pool.
func WithParallelThreshold(n int) Option {
	return func(c *Configuration) { c.ParallelThreshold = n }
}

func defaultConfiguration() Configuration {
	return Configuration{
		Threads:             0,
		AllocationThreshold: 4 << 20, // 4 MiB
		ParallelThreshold:   1024,
	}
}

func resolveThreads(threads int) int {
	if threads > 0 {
		return threads
	}
	if n := runtime.NumCPU() / 2; n > 0 {
		return n
	}
	return 1
}

// Statistics is a point-in-time snapshot of collector activity, per §6
// statistics() → Statistics and the original's Statistics struct.
type Statistics struct {
	CollectionsStarted     uint64
	CollectionsCompleted   uint64
	BytesAllocated         uint64
	BytesFreed             uint64
	ObjectsSwept           uint64
	LastCollectionDuration time.Duration
	TotalCollectionTime    time.Duration
}
